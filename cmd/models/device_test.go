package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"exact prod", "prod", EnvProd},
		{"production long form", "Production", EnvProd},
		{"prod with whitespace", "  PROD  ", EnvProd},
		{"exact staging", "staging", EnvStaging},
		{"stage short form", "stage", EnvStaging},
		{"mixed case staging", "StAgInG", EnvStaging},
		{"dev", "dev", EnvDev},
		{"development", "development", EnvDev},
		{"empty defaults to dev", "", EnvDev},
		{"unrecognized defaults to dev", "qa", EnvDev},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeEnvironment(tt.input))
		})
	}
}
