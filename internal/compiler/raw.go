package compiler

import (
	"encoding/json"

	"github.com/roach88/solpm/internal/ir"
)

// Wire shapes of an interface document. Polymorphic members stay raw until
// the compiler classifies them.
type (
	rawDocument struct {
		Address      string           `json:"address"`
		Name         string           `json:"name"`
		Version      string           `json:"version"`
		Metadata     rawMetadata      `json:"metadata"`
		Docs         []string         `json:"docs"`
		Instructions []rawInstruction `json:"instructions"`
		Accounts     []rawAccountDef  `json:"accounts"`
		Types        []rawTypeDef     `json:"types"`
		Errors       []ir.ErrorCode   `json:"errors"`
	}

	rawMetadata struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Spec        string `json:"spec"`
		Description string `json:"description"`
		Address     string `json:"address"`
		Network     string `json:"network"`
	}

	rawInstruction struct {
		Name          string       `json:"name"`
		Docs          []string     `json:"docs"`
		Discriminator []int        `json:"discriminator"`
		Args          []rawField   `json:"args"`
		Accounts      []rawAccount `json:"accounts"`
	}

	rawField struct {
		Name string          `json:"name"`
		Docs []string        `json:"docs"`
		Type json.RawMessage `json:"type"`
	}

	rawAccount struct {
		Name       string       `json:"name"`
		Docs       []string     `json:"docs"`
		Writable   bool         `json:"writable"`
		Signer     bool         `json:"signer"`
		IsMut      bool         `json:"isMut"`
		IsSigner   bool         `json:"isSigner"`
		Optional   bool         `json:"optional"`
		IsOptional bool         `json:"isOptional"`
		Address    string       `json:"address"`
		PDA        *rawPDA      `json:"pda"`
		Accounts   []rawAccount `json:"accounts"`
	}

	rawPDA struct {
		Seeds   []rawSeed `json:"seeds"`
		Program *rawSeed  `json:"program"`
	}

	rawSeed struct {
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
		Path  string          `json:"path"`
	}

	rawAccountDef struct {
		Name string       `json:"name"`
		Docs []string     `json:"docs"`
		Type *rawTypeBody `json:"type"`
	}

	rawTypeDef struct {
		Name string      `json:"name"`
		Docs []string    `json:"docs"`
		Type rawTypeBody `json:"type"`
	}

	rawTypeBody struct {
		Kind     string          `json:"kind"`
		Fields   json.RawMessage `json:"fields"`
		Variants []rawVariant    `json:"variants"`
		Alias    json.RawMessage `json:"alias"`
	}

	rawVariant struct {
		Name   string            `json:"name"`
		Fields []json.RawMessage `json:"fields"`
	}
)
