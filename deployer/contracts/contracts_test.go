package contracts

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	code    map[common.Address][]byte
	respond func(to common.Address, data []byte) ([]byte, error)
	calls   [][]byte
}

func (f *fakeCaller) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	f.calls = append(f.calls, data)
	return f.respond(to, data)
}

func (f *fakeCaller) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return f.code[addr], nil
}

func word(b []byte) []byte {
	return common.LeftPadBytes(b, 32)
}

var (
	shuffleAddr  = common.HexToAddress("0x40C2cAc8cD71FB82B2B3b72Ae24d797fE904FcE1")
	verifierAddr = common.HexToAddress("0x1DD1253e7F245a763776a94A886FB3ED1FEed01b")
)

func TestAttachShuffle(t *testing.T) {
	ctx := context.Background()
	c := &fakeCaller{
		code: map[common.Address][]byte{shuffleAddr: {0x60, 0x80}},
		respond: func(to common.Address, data []byte) ([]byte, error) {
			require.Equal(t, funcVerifier.Selector[:], data[:4])
			return word(verifierAddr.Bytes()), nil
		},
	}

	s, err := AttachShuffle(ctx, c, shuffleAddr)
	require.NoError(t, err)
	require.Equal(t, shuffleAddr, s.Address())

	current, err := s.Verifier(ctx)
	require.NoError(t, err)
	require.Equal(t, verifierAddr, current)

	data, err := s.SetVerifierData(verifierAddr)
	require.NoError(t, err)
	require.Equal(t, funcSetVerifier.Selector[:], data[:4])
	require.Equal(t, word(verifierAddr.Bytes()), data[4:])
}

func TestAttachShuffleMismatch(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		addr    common.Address
		code    []byte
		respond func(to common.Address, data []byte) ([]byte, error)
	}{
		{
			name: "zero address",
		},
		{
			name: "no code",
			addr: shuffleAddr,
		},
		{
			name: "reverts",
			addr: shuffleAddr,
			code: []byte{0x60, 0x80},
			respond: func(to common.Address, data []byte) ([]byte, error) {
				return nil, errors.New("execution reverted")
			},
		},
		{
			name: "empty return",
			addr: shuffleAddr,
			code: []byte{0x60, 0x80},
			respond: func(to common.Address, data []byte) ([]byte, error) {
				return nil, nil
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			caller := &fakeCaller{
				code:    map[common.Address][]byte{c.addr: c.code},
				respond: c.respond,
			}
			_, err := AttachShuffle(ctx, caller, c.addr)
			require.ErrorIs(t, err, ErrAttachMismatch)
		})
	}
}

func TestVerifierVerify(t *testing.T) {
	ctx := context.Background()
	publics := []byte{0x01, 0x02}
	proof := []byte{0xaa, 0xbb, 0xcc}

	c := &fakeCaller{
		code: map[common.Address][]byte{verifierAddr: {0x60, 0x80}},
		respond: func(to common.Address, data []byte) ([]byte, error) {
			var gotPublics, gotProof []byte
			require.NoError(t, funcVerify.DecodeArgs(data, &gotPublics, &gotProof))
			if bytes.Equal(gotPublics, publics) && bytes.Equal(gotProof, proof) {
				return word([]byte{1}), nil
			}
			return word(nil), nil
		},
	}

	v, err := AttachVerifier(ctx, c, verifierAddr)
	require.NoError(t, err)

	ok, err := v.Verify(ctx, publics, proof)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = v.Verify(ctx, publics, []byte{0xaa, 0xbb, 0xcd})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifierCallFailure(t *testing.T) {
	ctx := context.Background()
	callErr := errors.New("execution reverted: invalid proof length")
	c := &fakeCaller{
		code: map[common.Address][]byte{verifierAddr: {0x60, 0x80}},
		respond: func(to common.Address, data []byte) ([]byte, error) {
			return nil, callErr
		},
	}

	v, err := AttachVerifier(ctx, c, verifierAddr)
	require.NoError(t, err)
	_, err = v.Verify(ctx, []byte{1}, []byte{2})
	require.ErrorIs(t, err, callErr)

	_, err = AttachVerifier(ctx, c, shuffleAddr)
	require.ErrorIs(t, err, ErrAttachMismatch)
}

func TestProxyAddressFromReceipt(t *testing.T) {
	factoryAddr := common.HexToAddress("0x0000000000006396FF2a80c067f99B3d2Ab4Df24")
	proxy := common.HexToAddress("0x1111111111111111111111111111111111111111")
	impl := common.HexToAddress("0x2222222222222222222222222222222222222222")
	admin := common.HexToAddress("0x3333333333333333333333333333333333333333")

	topic0 := crypto.Keccak256Hash([]byte("Deployed(address,address,address)"))
	deployedLog := func(emitter common.Address) *types.Log {
		return &types.Log{
			Address: emitter,
			Topics: []common.Hash{
				topic0,
				common.BytesToHash(proxy.Bytes()),
				common.BytesToHash(impl.Bytes()),
				common.BytesToHash(admin.Bytes()),
			},
		}
	}

	c := &fakeCaller{code: map[common.Address][]byte{factoryAddr: {0x60}}}
	f, err := AttachProxyFactory(context.Background(), c, factoryAddr)
	require.NoError(t, err)

	got, err := f.ProxyAddressFromReceipt(&types.Receipt{Logs: []*types.Log{
		{Address: impl, Topics: []common.Hash{crypto.Keccak256Hash([]byte("Initialized(uint64)"))}},
		deployedLog(factoryAddr),
	}})
	require.NoError(t, err)
	require.Equal(t, proxy, got)

	_, err = f.ProxyAddressFromReceipt(&types.Receipt{Logs: []*types.Log{deployedLog(impl)}})
	require.ErrorIs(t, err, ErrDeployedEventMissing)

	data, err := f.DeployAndCallData(impl, admin, []byte{0xde, 0xad})
	require.NoError(t, err)
	require.Equal(t, funcDeployAndCall.Selector[:], data[:4])
}
