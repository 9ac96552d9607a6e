package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType defines the discriminator carried by every push event
type MessageType string

const (
	// TypeCrawlerUpdate is broadcast by the crawler after it stores a batch of
	// records for one account. Receivers re-fetch everything they display.
	TypeCrawlerUpdate MessageType = "crawler_update"
)

// BaseMessage contains common fields for all push events
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp Timestamp   `json:"timestamp"`
}

// CrawlerUpdate announces freshly crawled records for one account
type CrawlerUpdate struct {
	BaseMessage
	Account string            `json:"account"`
	Data    []json.RawMessage `json:"data"`
}

// RecordCount returns the number of records carried in the update
func (u *CrawlerUpdate) RecordCount() int {
	return len(u.Data)
}

// NewCrawlerUpdate builds an update event for account with the given records.
// Each record is marshalled individually so callers can pass any record type.
func NewCrawlerUpdate[T any](account string, records []T, ts Timestamp) (*CrawlerUpdate, error) {
	data := make([]json.RawMessage, 0, len(records))
	for i, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal record %d: %w", i, err)
		}
		data = append(data, raw)
	}
	return &CrawlerUpdate{
		BaseMessage: BaseMessage{Type: TypeCrawlerUpdate, Timestamp: ts},
		Account:     account,
		Data:        data,
	}, nil
}

// ParseMessage parses a JSON push event into the appropriate struct.
// Events with an unknown or missing type are returned as *BaseMessage so the
// caller can ignore them; only malformed JSON produces an error.
//
// The type alone decides: a crawler_update always yields a *CrawlerUpdate.
// An account or data field of the wrong shape is left empty.
func ParseMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	switch base.Type {
	case TypeCrawlerUpdate:
		return decodeCrawlerUpdate(data, base), nil

	default:
		return &base, nil
	}
}

// decodeCrawlerUpdate fills each body field independently so one bad field
// does not lose the rest of the event
func decodeCrawlerUpdate(data []byte, base BaseMessage) *CrawlerUpdate {
	msg := &CrawlerUpdate{BaseMessage: base}
	if err := json.Unmarshal(data, msg); err == nil {
		return msg
	}

	msg = &CrawlerUpdate{BaseMessage: base}
	var body struct {
		Account json.RawMessage `json:"account"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return msg
	}
	var account string
	if json.Unmarshal(body.Account, &account) == nil {
		msg.Account = account
	}
	var records []json.RawMessage
	if json.Unmarshal(body.Data, &records) == nil {
		msg.Data = records
	}
	return msg
}
