// Package competitionroom 提供了兒童道路安全問答的即時競賽房間服務。
//
// 房間生命週期
//
// 每個房間以 6 碼房間碼識別，狀態依序經過：
//   - waiting：玩家加入、切換準備狀態
//   - starting：房主開始後倒數 3 秒，人數不足時退回 waiting
//   - in_progress：依序作答，全員作答或超時後切換下一題
//   - finished：依分數與總耗時排名，前三名頒發金銀銅牌
//
// # WebSocket 通訊
//
// 所有競賽操作都走 /ws，訊息格式為 {"event": "...", "data": {...}}：
//   - 客戶端：createRoom、joinRoom、leaveRoom、toggleReady、startGame、answer
//   - 伺服器：roomCreated、playerJoined、playerLeft、gameStarting、
//     countdownUpdate、gameStarted、nextQuestion、answerReceived、gameOver、error
//
// 併發設計
//
// 所有狀態處理與計時器回呼都在單一事件迴圈內依序執行，房間狀態不需加鎖。
// Manager 只回傳 Effects，由 Broker 負責訂閱與廣播。
//
// 使用範例
//
// 啟動服務器：
//
//	go run ./cmd/server -config config.yaml -log-level debug
//
// 客戶端連接：
//
//	ws := new WebSocket("ws://localhost:8080/ws")
//	ws.send(JSON.stringify({event: "joinRoom", data: {roomCode: "ABC123", playerId: "p1", playerName: "Ana"}}))
//
// 配置選項
//
//   - -config：YAML 配置檔（預設 config.yaml，不存在則使用預設值）
//   - -port：服務監聽端口（預設 8080）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
//
// 環境變數 PORT、LOG_LEVEL、LOG_FORMAT、QUESTIONS_PATH 可覆蓋配置檔，
// 也可寫在 .env。
//
// 診斷端點
//
//   - GET /health：狀態、運行秒數、房間數、連接數
//   - GET /rooms：所有房間摘要
//   - GET /rooms/{code}：單一房間詳情
package competitionroom
