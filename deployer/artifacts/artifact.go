package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	ContractName string
	ABI          abi.ABI
	Bytecode     []byte
}

// Source loads artifacts by contract name.
type Source interface {
	Load(ctx context.Context, name string) (*Artifact, error)
}

// rawArtifact accepts both Hardhat artifacts, where bytecode is a hex
// string, and Foundry artifacts, where it is an object with an "object" key.
type rawArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

func Parse(name string, data []byte) (*Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", name, err)
	}

	parsedABI, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi of %s: %w", name, err)
	}

	bytecode, err := decodeBytecode(raw.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bytecode of %s: %w", name, err)
	}
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("artifact %s has no bytecode, is it abstract or an interface?", name)
	}

	contractName := raw.ContractName
	if contractName == "" {
		contractName = name
	}

	return &Artifact{
		ContractName: contractName,
		ABI:          parsedABI,
		Bytecode:     bytecode,
	}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var hexStr string
	if raw[0] == '{' {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		hexStr = obj.Object
	} else if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, err
	}

	if hexStr == "" || hexStr == "0x" {
		return nil, nil
	}
	if strings.Contains(hexStr, "__") {
		return nil, errors.New("bytecode has unlinked libraries")
	}
	if !strings.HasPrefix(hexStr, "0x") {
		hexStr = "0x" + hexStr
	}
	return hexutil.Decode(hexStr)
}

// DeployData packs the constructor arguments after the creation bytecode.
func (a *Artifact) DeployData(args ...any) ([]byte, error) {
	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack constructor args for %s: %w", a.ContractName, err)
	}
	data := make([]byte, 0, len(a.Bytecode)+len(packed))
	data = append(data, a.Bytecode...)
	return append(data, packed...), nil
}

// InitData encodes a call to the named initializer.
func (a *Artifact) InitData(method string, args ...any) ([]byte, error) {
	if _, ok := a.ABI.Methods[method]; !ok {
		return nil, fmt.Errorf("%s has no %s method", a.ContractName, method)
	}
	data, err := a.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s args for %s: %w", method, a.ContractName, err)
	}
	return data, nil
}

// Implements reports whether the ABI declares every named method.
func (a *Artifact) Implements(methods ...string) bool {
	for _, m := range methods {
		if _, ok := a.ABI.Methods[m]; !ok {
			return false
		}
	}
	return true
}
