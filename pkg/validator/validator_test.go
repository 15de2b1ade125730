package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type joinInput struct {
	RoomCode string  `json:"roomCode" validate:"required,len=6,alphanum"`
	Username string  `json:"username" validate:"required,max=32"`
	Time     float64 `json:"currentTime" validate:"gte=0"`
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()

	errs, ok := v.Validate(joinInput{RoomCode: "AB", Time: -1})
	assert.False(t, ok)
	assert.Len(t, errs, 3)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "LEN", byField["roomCode"].Code)
	assert.Equal(t, "username is required", byField["username"].Message)
	assert.Equal(t, "currentTime must be greater than or equal to 0", byField["currentTime"].Message)
	assert.Contains(t, errs.Error(), "username is required")
}

func TestValidatePasses(t *testing.T) {
	v := NewValidator()

	errs, ok := v.Validate(joinInput{RoomCode: "ABC123", Username: "ana"})
	assert.True(t, ok)
	assert.Nil(t, errs)
}

func TestValidateNonStruct(t *testing.T) {
	_, ok := NewValidator().Validate(42)
	assert.True(t, ok)
}
