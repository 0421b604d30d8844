package internal

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Registry 進程內的房間表
//
// 以房間碼為鍵，另維護 connectionID → 房間碼 的索引供斷線清理使用。
// 只在事件迴圈內存取，不另加鎖。
type Registry struct {
	rooms    map[string]*Room  // code -> Room
	connRoom map[string]string // connectionID -> code
}

// NewRegistry 創建房間表
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		connRoom: make(map[string]string),
	}
}

// Create 註冊新房間，房間碼已存在時回傳 ErrRoomExists
func (reg *Registry) Create(code string, maxPlayers int, now time.Time) (*Room, error) {
	if _, exists := reg.rooms[code]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, code)
	}
	room := NewRoom(code, maxPlayers, now)
	reg.rooms[code] = room
	return room, nil
}

// Get 依房間碼取得房間（不分大小寫）
func (reg *Registry) Get(code string) (*Room, error) {
	room, exists := reg.rooms[strings.ToUpper(code)]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return room, nil
}

// Has 房間碼是否使用中
func (reg *Registry) Has(code string) bool {
	_, exists := reg.rooms[code]
	return exists
}

// Delete 移除房間及其連接索引，不存在時不做任何事
func (reg *Registry) Delete(code string) {
	room, exists := reg.rooms[code]
	if !exists {
		return
	}
	for _, connID := range room.Connections() {
		if reg.connRoom[connID] == code {
			delete(reg.connRoom, connID)
		}
	}
	delete(reg.rooms, code)
}

// All 依創建時間回傳所有房間
func (reg *Registry) All() []*Room {
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	slices.SortFunc(rooms, func(a, b *Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
	return rooms
}

// Len 房間數量
func (reg *Registry) Len() int {
	return len(reg.rooms)
}

// Bind 記錄連接所在房間
func (reg *Registry) Bind(connID, code string) {
	reg.connRoom[connID] = code
}

// Unbind 清除連接索引
func (reg *Registry) Unbind(connID string) {
	delete(reg.connRoom, connID)
}

// RoomOf 查詢連接所在房間
func (reg *Registry) RoomOf(connID string) (*Room, bool) {
	code, ok := reg.connRoom[connID]
	if !ok {
		return nil, false
	}
	room, ok := reg.rooms[code]
	return room, ok
}

// ConnectionsBound 已加入房間的連接數
func (reg *Registry) ConnectionsBound() int {
	return len(reg.connRoom)
}
