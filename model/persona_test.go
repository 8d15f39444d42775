package model

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonaValidate(t *testing.T) {
	valid := Persona{Name: "Alice", Personality: "Curious", Age: 30, Gender: "female"}

	tests := []struct {
		name    string
		mutate  func(p *Persona)
		wantErr string
	}{
		{name: "valid", mutate: func(p *Persona) {}},
		{name: "missing name", mutate: func(p *Persona) { p.Name = "" }, wantErr: "name is required"},
		{name: "missing personality", mutate: func(p *Persona) { p.Personality = "" }, wantErr: `"Alice": personality`},
		{name: "negative age", mutate: func(p *Persona) { p.Age = -1 }, wantErr: "invalid age -1"},
		{name: "missing gender", mutate: func(p *Persona) { p.Gender = "" }, wantErr: "gender is required"},
		{name: "half a fallback", mutate: func(p *Persona) { p.FallbackProvider = "ollama" }, wantErr: "set together"},
		{name: "full fallback", mutate: func(p *Persona) { p.FallbackProvider, p.FallbackModel = "ollama", "llama3.1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			// pkg/errors values carry a stack trace.
			_, hasStack := err.(interface{ StackTrace() errors.StackTrace })
			assert.True(t, hasStack)
		})
	}
}
