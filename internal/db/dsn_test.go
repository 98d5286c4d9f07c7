package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactDSN(t *testing.T) {
	tests := map[string]string{
		"postgres://sim:secret@db:5432/journeys?sslmode=disable": "postgres://sim:xxxxx@db:5432/journeys?sslmode=disable",
		"postgres://sim@db/journeys":                             "postgres://sim@db/journeys",
		"postgres://db/journeys?password=secret":                 "postgres://db/journeys?password=xxxxx",
		"host=db user=sim password=secret":                       "<redacted>",
		"postgres://%zz":                                         "<redacted>",
	}
	for in, want := range tests {
		assert.Equal(t, want, RedactDSN(in), in)
	}
}
