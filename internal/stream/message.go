package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dyike/QuantDesk/consts"
	"github.com/dyike/QuantDesk/models"
)

// Handler receives decoded stream events in arrival order.
type Handler interface {
	OnMetadata(models.StreamMetadata)
	OnCandle(models.CandleEvent)
	OnSignal(models.TradeSignal)
	OnStats(models.Stats)
	OnComplete(models.CompletePayload)
	OnError(models.StreamError)
}

// envelope is the common frame header. Type-specific fields are either
// nested under "data" or inlined next to "type".
type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Index *int            `json:"index"`
}

func (e envelope) payload(raw []byte) []byte {
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return raw
	}
	return data
}

// Dispatch decodes one frame and calls the matching Handler method.
// Unknown types are ignored and return nil.
func Dispatch(h Handler, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	body := env.payload(raw)

	switch env.Type {
	case consts.Event_Metadata:
		var md models.StreamMetadata
		if err := json.Unmarshal(body, &md); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
		h.OnMetadata(md)
	case consts.Event_Candle:
		var c models.Candle
		if err := json.Unmarshal(body, &c); err != nil {
			return fmt.Errorf("decode candle: %w", err)
		}
		ev := models.CandleEvent{Candle: c, Index: env.Index}
		if ev.Index == nil {
			var pos struct {
				Index *int `json:"index"`
			}
			_ = json.Unmarshal(body, &pos)
			ev.Index = pos.Index
		}
		h.OnCandle(ev)
	case consts.Event_Signal:
		var s models.TradeSignal
		if err := json.Unmarshal(body, &s); err != nil {
			return fmt.Errorf("decode signal: %w", err)
		}
		s.Side = models.NormalizeSide(s.Side)
		h.OnSignal(s)
	case consts.Event_Stats:
		var st models.Stats
		if err := json.Unmarshal(body, &st); err != nil {
			return fmt.Errorf("decode stats: %w", err)
		}
		h.OnStats(st)
	case consts.Event_Complete:
		var cp models.CompletePayload
		if err := json.Unmarshal(body, &cp); err != nil {
			return fmt.Errorf("decode complete: %w", err)
		}
		h.OnComplete(cp)
	case consts.Event_Error:
		var se models.StreamError
		if err := json.Unmarshal(body, &se); err != nil {
			return fmt.Errorf("decode error event: %w", err)
		}
		if se.Message == "" {
			se.Message = "backtest stream reported an error"
		}
		h.OnError(se)
	}
	return nil
}
