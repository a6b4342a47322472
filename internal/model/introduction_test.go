package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartyStatusValid(t *testing.T) {
	assert.True(t, PartyPending.Valid())
	assert.True(t, PartyConnected.Valid())
	assert.True(t, PartyDecline.Valid())

	assert.False(t, PartyStatus("declined").Valid())
	assert.False(t, PartyStatus("").Valid())
	assert.False(t, PartyStatus("Connected").Valid())
}

func TestPartyStatusTerminal(t *testing.T) {
	assert.False(t, PartyPending.Terminal())
	assert.True(t, PartyConnected.Terminal())
	assert.True(t, PartyDecline.Terminal())
}

func TestRequestStatusValid(t *testing.T) {
	assert.True(t, RequestPending.Valid())
	assert.True(t, RequestApproved.Valid())
	assert.True(t, RequestRejected.Valid())

	assert.False(t, RequestStatus("denied").Valid())
	assert.False(t, RequestStatus("").Valid())
}
