package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

type refusingStarter struct {
	got pgx.TxOptions
}

func (s *refusingStarter) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	s.got = opts
	return nil, errors.New("connection refused")
}

func TestWithTxBeginFailure(t *testing.T) {
	starter := &refusingStarter{}
	called := false
	err := WithTx(context.Background(), starter, func(pgx.Tx) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "platform/db: begin tx")
	assert.False(t, called)
	assert.Equal(t, pgx.RepeatableRead, starter.got.IsoLevel)
}

func TestWithTxSerializableOption(t *testing.T) {
	starter := &refusingStarter{}
	_ = WithTx(context.Background(), starter, func(pgx.Tx) error { return nil }, Serializable())
	assert.Equal(t, pgx.Serializable, starter.got.IsoLevel)
}
