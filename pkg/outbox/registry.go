package outbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

// DecoderFunc turns an envelope's data section into a typed payload.
type DecoderFunc func(data json.RawMessage) (any, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, version) to a payload decoder.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	decoders map[registryKey]DecoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[registryKey]DecoderFunc)}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder DecoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.decoders[registryKey{eventType: eventType, version: version}] = decoder
}

// RegisterJSON registers a decoder that unmarshals into a fresh T.
func RegisterJSON[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int) {
	r.Register(eventType, version, func(data json.RawMessage) (any, error) {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
}

// Decode parses a stored outbox payload into its envelope and typed data.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, raw json.RawMessage) (PayloadEnvelope, any, error) {
	envelope, err := DecodeEnvelope(raw, nil)
	if err != nil {
		return envelope, nil, fmt.Errorf("decode envelope: %w", err)
	}
	r.mtx.RLock()
	decoder, ok := r.decoders[registryKey{eventType: eventType, version: envelope.Version}]
	r.mtx.RUnlock()
	if !ok {
		return envelope, nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, envelope.Version)
	}
	data, err := decoder(envelope.Data)
	if err != nil {
		return envelope, nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return envelope, data, nil
}
