package cache

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes cached values
type Codec[T any] interface {
	Marshal(value T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// Msgpack is the codec of structured values such as geocode responses
type Msgpack[T any] struct{}

func (Msgpack[T]) Marshal(value T) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (Msgpack[T]) Unmarshal(data []byte) (T, error) {
	var value T
	err := msgpack.Unmarshal(data, &value)
	return value, err
}

// Text stores strings as-is so they stay readable from redis-cli
type Text struct{}

func (Text) Marshal(value string) ([]byte, error) {
	return []byte(value), nil
}

func (Text) Unmarshal(data []byte) (string, error) {
	return string(data), nil
}
