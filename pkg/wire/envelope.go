package wire

import "encoding/json"

// Server -> client message types on the table channel.
const (
	TypeSnapshot     = "snapshot"
	TypeTableUpdate  = "table_update"
	TypeSeatUpdate   = "seat_update"
	TypePlayerUpdate = "player_update"
	TypePotUpdate    = "pot_update"
	TypeActionUpdate = "action_update"
	TypeTimerUpdate  = "timer_update"
	TypePing         = "ping"
)

// Client -> server message types.
const (
	TypePong            = "pong"
	TypeSnapshotRequest = "snapshot_request"
)

// Lobby channel message types.
const (
	TypeTableRemoved        = "TABLE_REMOVED"
	TypeLobbyUpdateRequired = "LOBBY_UPDATE_REQUIRED"
)

// VersionAbsent marks a versioning counter the frame did not carry. Zero is
// a valid counter value on servers that count from 0, so absence needs its
// own sentinel.
const VersionAbsent int64 = -1

// Envelope is the frame every table/lobby channel message travels in.
// Payload stays raw until the reconciler decides what to do with it; the
// normalizer is the only place that interprets its contents.
//
// Received frames should go through DecodeEnvelope so that absent counters
// come back as VersionAbsent instead of a fake 0.
type Envelope struct {
	Type          string          `json:"type"`
	SchemaVersion int             `json:"schema_version,omitempty"`
	TableVersion  int64           `json:"table_version,omitempty"`
	EventSeq      int64           `json:"event_seq,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	TableID       int64           `json:"table_id,omitempty"`
	Timestamp     int64           `json:"timestamp,omitempty"`
}

// DecodeEnvelope unmarshals a received frame, keeping "counter is 0"
// distinguishable from "counter missing": table_version and event_seq the
// frame did not carry come back as VersionAbsent.
func DecodeEnvelope(data []byte) (Envelope, error) {
	env := Envelope{TableVersion: VersionAbsent, EventSeq: VersionAbsent}
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{TableVersion: VersionAbsent, EventSeq: VersionAbsent}, err
	}
	return env, nil
}

// IsDelta reports whether the message type is an incremental update, as
// opposed to a snapshot or a control frame.
func IsDelta(msgType string) bool {
	switch msgType {
	case TypeTableUpdate, TypeSeatUpdate, TypePlayerUpdate, TypePotUpdate, TypeActionUpdate, TypeTimerUpdate:
		return true
	}
	return false
}

// DecodePayload unmarshals the payload into a loose map. A missing or
// malformed payload yields an empty map, never an error: the normalizer
// downstream is total over whatever comes out.
func (e Envelope) DecodePayload() map[string]any {
	if len(e.Payload) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(e.Payload, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}
