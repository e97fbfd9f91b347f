package consts

// Stream event types pushed by the backtest WebSocket.
const (
	Event_Metadata = "metadata"
	Event_Candle   = "candle"
	Event_Signal   = "signal"
	Event_Stats    = "stats"
	Event_Complete = "complete"
	Event_Error    = "error"
)

// Client -> server stream actions.
const (
	Action_StartBacktest = "start_backtest"
)

// Signal fields
const (
	Signal_Entry = "entry"
	Signal_Exit  = "exit"

	Side_Buy  = "buy"
	Side_Sell = "sell"
)
