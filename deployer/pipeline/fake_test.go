package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/lmittmann/w3"
	"github.com/stretchr/testify/require"

	"github.com/ace-quest/ace-pozk/deployer/artifacts"
	"github.com/ace-quest/ace-pozk/deployer/chain"
	"github.com/ace-quest/ace-pozk/deployer/state"
)

var (
	fnDeployAndCall = w3.MustNewFunc("deployAndCall(address,address,bytes)", "address")
	fnInitialize    = w3.MustNewFunc("initialize(address)", "")
	fnSetVerifier   = w3.MustNewFunc("setVerifier(address)", "")
	fnVerifier      = w3.MustNewFunc("verifier()", "address")
	fnVerify        = w3.MustNewFunc("verify(bytes,bytes)", "bool")

	deployedTopic = crypto.Keccak256Hash([]byte("Deployed(address,address,address)"))

	errExecutionReverted = errors.New("execution reverted")
)

const (
	keyAArtifact = `{"contractName":"VerifierKey_52_1","abi":[],"bytecode":"0x600101"}`
	keyBArtifact = `{"contractName":"VerifierKey_52_2","abi":[],"bytecode":"0x600102"}`

	compositeABI = `[
		{"type":"constructor","inputs":[{"name":"_vk1","type":"address"},{"name":"_vk2","type":"address"}],"stateMutability":"nonpayable"},
		{"type":"function","name":"verify","inputs":[{"name":"publics","type":"bytes"},{"name":"proof","type":"bytes"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"}
	]`
	shuffleABI = `[
		{"type":"function","name":"initialize","inputs":[{"name":"_verifier","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
		{"type":"function","name":"setVerifier","inputs":[{"name":"_verifier","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
		{"type":"function","name":"verifier","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}
	]`
)

var testArtifacts = map[string]string{
	"VerifierKey_52_1":  keyAArtifact,
	"VerifierKey_52_2":  keyBArtifact,
	"Shuffle17Verifier": `{"contractName":"Shuffle17Verifier","abi":` + compositeABI + `,"bytecode":{"object":"600103"}}`,
	"Shuffle52Verifier": `{"contractName":"Shuffle52Verifier","abi":` + compositeABI + `,"bytecode":{"object":"600105"}}`,
	"Shuffle17":         `{"contractName":"Shuffle17","abi":` + shuffleABI + `,"bytecode":"0x600104"}`,
	"ERC1967Factory":    `{"contractName":"ERC1967Factory","abi":[],"bytecode":"0x600106"}`,
}

// mapSource serves artifacts parsed from testArtifacts.
type mapSource struct {
	t     *testing.T
	loads []string
}

func (m *mapSource) Load(ctx context.Context, name string) (*artifacts.Artifact, error) {
	m.loads = append(m.loads, name)
	raw, ok := testArtifacts[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, artifacts.ErrArtifactNotFound)
	}
	a, err := artifacts.Parse(name, []byte(raw))
	require.NoError(m.t, err)
	return a, nil
}

type deployedContract struct {
	Address common.Address
	Data    []byte
}

type sentTx struct {
	To   common.Address
	Data []byte
}

// fakeChain is an in-memory chain with just enough contract behaviour for
// the shuffle contracts: factories that create initialized proxies, proxies
// that store a verifier, and verifiers that accept one proof.
type fakeChain struct {
	from  common.Address
	nonce uint64

	code       map[common.Address][]byte
	receipts   map[common.Hash]*types.Receipt
	verifierOf map[common.Address]common.Address
	proxies    uint64

	deploys []deployedContract
	sent    []sentTx

	// revertDeploy is the 1-based index of the deployment that reverts.
	revertDeploy int
	revertSend   bool
	verifyErr    error

	validPublics []byte
	validProof   []byte
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		from:       common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		code:       make(map[common.Address][]byte),
		receipts:   make(map[common.Hash]*types.Receipt),
		verifierOf: make(map[common.Address]common.Address),
	}
}

func (f *fakeChain) Address() common.Address {
	return f.from
}

func (f *fakeChain) nextTxHash() common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], f.nonce)
	hash := crypto.Keccak256Hash(f.from.Bytes(), buf[:])
	f.nonce++
	return hash
}

func (f *fakeChain) DeployContract(ctx context.Context, data []byte, gasLimit uint64) (chain.DeployResult, error) {
	addr := crypto.CreateAddress(f.from, f.nonce)
	txHash := f.nextTxHash()
	f.deploys = append(f.deploys, deployedContract{Address: addr, Data: data})

	if f.revertDeploy == len(f.deploys) {
		f.receipts[txHash] = &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: txHash}
	} else {
		f.code[addr] = data
		f.receipts[txHash] = &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash, ContractAddress: addr}
	}
	return chain.DeployResult{TxHash: txHash, ContractAddress: addr}, nil
}

func (f *fakeChain) SendTx(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (common.Hash, error) {
	txHash := f.nextTxHash()
	f.sent = append(f.sent, sentTx{To: to, Data: data})

	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}
	f.receipts[txHash] = receipt
	if f.revertSend || len(f.code[to]) == 0 || len(data) < 4 {
		receipt.Status = types.ReceiptStatusFailed
		return txHash, nil
	}

	switch {
	case bytes.Equal(data[:4], fnDeployAndCall.Selector[:]):
		var (
			impl, admin common.Address
			initData    []byte
		)
		if err := fnDeployAndCall.DecodeArgs(data, &impl, &admin, &initData); err != nil {
			receipt.Status = types.ReceiptStatusFailed
			return txHash, nil
		}
		var verifier common.Address
		if err := fnInitialize.DecodeArgs(initData, &verifier); err != nil {
			receipt.Status = types.ReceiptStatusFailed
			return txHash, nil
		}
		proxy := crypto.CreateAddress(to, f.proxies)
		f.proxies++
		f.code[proxy] = []byte{0x36, 0x3d}
		f.verifierOf[proxy] = verifier
		receipt.Logs = []*types.Log{{
			Address: to,
			Topics: []common.Hash{
				deployedTopic,
				common.BytesToHash(proxy.Bytes()),
				common.BytesToHash(impl.Bytes()),
				common.BytesToHash(admin.Bytes()),
			},
		}}
	case bytes.Equal(data[:4], fnSetVerifier.Selector[:]):
		var verifier common.Address
		if _, ok := f.verifierOf[to]; !ok {
			receipt.Status = types.ReceiptStatusFailed
			return txHash, nil
		}
		if err := fnSetVerifier.DecodeArgs(data, &verifier); err != nil {
			receipt.Status = types.ReceiptStatusFailed
			return txHash, nil
		}
		f.verifierOf[to] = verifier
	default:
		receipt.Status = types.ReceiptStatusFailed
	}
	return txHash, nil
}

func (f *fakeChain) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, fmt.Errorf("unknown tx %s", txHash.Hex())
	}
	return receipt, nil
}

func (f *fakeChain) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if len(f.code[to]) == 0 {
		return nil, nil
	}
	if len(data) < 4 {
		return nil, errExecutionReverted
	}

	switch {
	case bytes.Equal(data[:4], fnVerifier.Selector[:]):
		verifier, ok := f.verifierOf[to]
		if !ok {
			return nil, errExecutionReverted
		}
		return word(verifier.Bytes()), nil
	case bytes.Equal(data[:4], fnVerify.Selector[:]):
		if f.verifyErr != nil {
			return nil, f.verifyErr
		}
		var publics, proof []byte
		if err := fnVerify.DecodeArgs(data, &publics, &proof); err != nil {
			return nil, errExecutionReverted
		}
		if bytes.Equal(publics, f.validPublics) && bytes.Equal(proof, f.validProof) {
			return word([]byte{1}), nil
		}
		return word(nil), nil
	}
	return nil, errExecutionReverted
}

func (f *fakeChain) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return f.code[addr], nil
}

// install places code at addr as if it had been deployed before the run.
func (f *fakeChain) install(addr common.Address) {
	f.code[addr] = []byte{0x60, 0x80}
}

// installProxy places a shuffle proxy at addr delegating to verifier.
func (f *fakeChain) installProxy(addr, verifier common.Address) {
	f.install(addr)
	f.verifierOf[addr] = verifier
}

func newTestEnv(t *testing.T, c *fakeChain, network *state.Network, reg *state.Registry) *Env {
	if reg == nil {
		reg = state.NewRegistry()
	}
	return &Env{
		Network:   network,
		Chain:     c,
		Artifacts: &mapSource{t: t},
		Registry:  reg,
		Logger:    log.NewLogger(log.DiscardHandler()),
	}
}

func word(b []byte) []byte {
	return common.LeftPadBytes(b, 32)
}
