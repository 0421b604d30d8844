package internal

import "errors"

// 錯誤分類：
//   - 驗證錯誤：房間不存在、房間已滿、遊戲已開始、房間碼衝突
//   - 授權錯誤：非房主開始遊戲
//   - 內部錯誤：格式錯誤的訊息、處理器 panic
//
// 所有錯誤只回報給發起的連接，房間狀態不變。
var (
	ErrRoomNotFound       = errors.New("房間不存在")
	ErrRoomExists         = errors.New("房間碼已被使用")
	ErrRoomFull           = errors.New("房間已滿")
	ErrGameAlreadyStarted = errors.New("遊戲已開始")
	ErrNotHost            = errors.New("只有房主可以開始遊戲")
	ErrNotEnoughPlayers   = errors.New("玩家人數不足")
	ErrPlayersNotReady    = errors.New("尚有玩家未準備")
	ErrNotInRoom          = errors.New("玩家不在房間內")
	ErrAlreadyInRoom      = errors.New("連接已在其他房間中")
	ErrAlreadyAnswered    = errors.New("本題已作答")
	ErrStaleQuestion      = errors.New("題目已過期")
	ErrNotInProgress      = errors.New("遊戲尚未進行")
	ErrInvalidPayload     = errors.New("無效的請求格式")
	ErrUnknownEvent       = errors.New("未知的事件類型")
	ErrInvalidRoomCode    = errors.New("無效的房間碼")
	ErrInvalidCapacity    = errors.New("玩家數量超出範圍")
	ErrTooManyRooms       = errors.New("房間數量已達上限")
	ErrCodeSpaceExhausted = errors.New("無法產生唯一房間碼")
	ErrInternal           = errors.New("內部伺服器錯誤")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "room_not_found"},
	{ErrRoomExists, "room_exists"},
	{ErrRoomFull, "room_full"},
	{ErrGameAlreadyStarted, "game_already_started"},
	{ErrNotHost, "not_host"},
	{ErrNotEnoughPlayers, "not_enough_players"},
	{ErrPlayersNotReady, "players_not_ready"},
	{ErrNotInRoom, "not_in_room"},
	{ErrAlreadyInRoom, "already_in_room"},
	{ErrAlreadyAnswered, "already_answered"},
	{ErrStaleQuestion, "stale_question"},
	{ErrNotInProgress, "not_in_progress"},
	{ErrInvalidPayload, "invalid_payload"},
	{ErrUnknownEvent, "unknown_event"},
	{ErrInvalidRoomCode, "invalid_room_code"},
	{ErrInvalidCapacity, "invalid_capacity"},
	{ErrTooManyRooms, "too_many_rooms"},
	{ErrCodeSpaceExhausted, "code_space_exhausted"},
}

// ErrorCode 將錯誤轉為穩定的客戶端錯誤碼，未分類的錯誤一律為 internal_error
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal_error"
}
