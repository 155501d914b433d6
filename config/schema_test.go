// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package config

import (
	"strings"
	"testing"
)

func TestValidateWithSchemaValid(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	if err := ValidateWithSchema(path); err != nil {
		t.Errorf("ValidateWithSchema() error = %v", err)
	}
}

func TestValidateWithSchemaUnknownField(t *testing.T) {
	path := writeTempConfig(t, validYAML+"unknown_section:\n  key: value\n")
	err := ValidateWithSchema(path)
	if err == nil {
		t.Fatal("ValidateWithSchema() should reject unknown top-level sections")
	}
}

func TestValidateWithSchemaBadPort(t *testing.T) {
	yaml := validYAML + `discovery:
  broadcast_port: 70000
`
	err := ValidateWithSchema(writeTempConfig(t, yaml))
	if err == nil {
		t.Fatal("ValidateWithSchema() should reject out-of-range ports")
	}
	if !strings.Contains(err.Error(), "broadcast_port") {
		t.Errorf("error %q does not mention broadcast_port", err.Error())
	}
}

func TestValidateWithSchemaBadMacPattern(t *testing.T) {
	yaml := `cloud:
  email: user@example.com
  password: secret
device:
  mac: "zz:zz:zz:zz:zz:zz"
`
	if err := ValidateWithSchema(writeTempConfig(t, yaml)); err == nil {
		t.Fatal("ValidateWithSchema() should reject non-hex MAC addresses")
	}
}

func TestValidateWithSchemaMissingFile(t *testing.T) {
	if err := ValidateWithSchema("/nonexistent/config.yaml"); err == nil {
		t.Fatal("ValidateWithSchema() should fail for a missing file")
	}
}

func TestGetSchemaJSON(t *testing.T) {
	schema := GetSchemaJSON()
	if !strings.Contains(schema, "TapoToggle Configuration") {
		t.Error("embedded schema does not look like the expected document")
	}
}
