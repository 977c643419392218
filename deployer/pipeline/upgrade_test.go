package pipeline

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ace-quest/ace-pozk/deployer/chain"
	"github.com/ace-quest/ace-pozk/deployer/contracts"
	"github.com/ace-quest/ace-pozk/deployer/state"
)

var (
	liveKeyA     = common.HexToAddress("0xf55fB7932ca0179ad0a18307AC5cd87bd7A8c61E")
	liveKeyB     = common.HexToAddress("0x499094F6Ac3C351EF2d113f2851b7F1b7e761B09")
	liveVerifier = common.HexToAddress("0x1DD1253e7F245a763776a94A886FB3ED1FEed01b")
	liveShuffle  = common.HexToAddress("0x40C2cAc8cD71FB82B2B3b72Ae24d797fE904FcE1")
)

func liveNetwork(t *testing.T, c *fakeChain) (*state.Network, *state.Registry) {
	c.install(liveKeyA)
	c.install(liveKeyB)
	c.install(liveVerifier)
	c.installProxy(liveShuffle, liveVerifier)

	network := &state.Network{
		VerifierKeyA: liveKeyA,
		VerifierKeyB: liveKeyB,
		Verifier:     liveVerifier,
		Shuffle:      liveShuffle,
	}
	reg, err := network.Registry()
	require.NoError(t, err)
	return network, reg
}

func TestUpgradeVerifier(t *testing.T) {
	c := newFakeChain()
	network, reg := liveNetwork(t, c)
	env := newTestEnv(t, c, network, reg)
	st := state.NewState(state.NetworkBaseSepolia, "upgrade", c.Address())

	require.NoError(t, UpgradeVerifier(common.Address{})(context.Background(), env, state.DefaultIntent(), st))

	require.Len(t, c.deploys, 1)
	require.Len(t, c.sent, 1)
	newVerifier := c.deploys[0].Address

	ctorArgs := c.deploys[0].Data[len(common.FromHex("0x600105")):]
	require.Equal(t, append(word(liveKeyA.Bytes()), word(liveKeyB.Bytes())...), ctorArgs)

	require.Equal(t, liveShuffle, c.sent[0].To)
	var arg common.Address
	require.NoError(t, fnSetVerifier.DecodeArgs(c.sent[0].Data, &arg))
	require.Equal(t, newVerifier, arg)
	require.Equal(t, newVerifier, c.verifierOf[liveShuffle])

	require.NotNil(t, st.Upgrade)
	require.Equal(t, liveShuffle, st.Upgrade.Proxy)
	require.Equal(t, liveVerifier, st.Upgrade.PreviousVerifier)
	require.Equal(t, newVerifier, st.Upgrade.NewVerifier)

	recorded, err := env.Registry.Resolve(state.RoleUpgradeVerifier)
	require.NoError(t, err)
	require.Equal(t, newVerifier, recorded)
	require.Len(t, st.Deployments, 1)
	require.Equal(t, state.RoleUpgradeVerifier, st.Deployments[0].Role)
	require.Equal(t, "Shuffle52Verifier", st.Deployments[0].Contract)
}

func TestUpgradeVerifierExplicitProxy(t *testing.T) {
	c := newFakeChain()
	network, reg := liveNetwork(t, c)
	other := common.HexToAddress("0xbC9b4e9d43830f747e65873A5e122DDd9C9d769b")
	c.installProxy(other, liveVerifier)

	env := newTestEnv(t, c, network, reg)
	st := state.NewState(state.NetworkBaseSepolia, "upgrade", c.Address())
	require.NoError(t, UpgradeVerifier(other)(context.Background(), env, state.DefaultIntent(), st))

	require.Equal(t, c.deploys[0].Address, c.verifierOf[other])
	require.Equal(t, liveVerifier, c.verifierOf[liveShuffle])
}

func TestUpgradeVerifierRevert(t *testing.T) {
	c := newFakeChain()
	c.revertSend = true
	network, reg := liveNetwork(t, c)
	env := newTestEnv(t, c, network, reg)
	st := state.NewState(state.NetworkBaseSepolia, "upgrade", c.Address())

	err := UpgradeVerifier(common.Address{})(context.Background(), env, state.DefaultIntent(), st)
	require.ErrorIs(t, err, ErrDeploymentFailed)
	require.ErrorIs(t, err, chain.ErrTxReverted)

	// The new verifier exists but the proxy still delegates to the old one.
	require.Len(t, c.deploys, 1)
	require.Equal(t, liveVerifier, c.verifierOf[liveShuffle])
	require.Nil(t, st.Upgrade)
	require.Len(t, st.Deployments, 1)
}

func TestUpgradeVerifierAttachMismatch(t *testing.T) {
	cases := []struct {
		name  string
		proxy common.Address
	}{
		{"no code", common.HexToAddress("0x000000000000000000000000000000000000dEaD")},
		{"not a shuffle", liveKeyA},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newFakeChain()
			network, reg := liveNetwork(t, c)
			env := newTestEnv(t, c, network, reg)
			st := state.NewState(state.NetworkBaseSepolia, "upgrade", c.Address())

			err := UpgradeVerifier(tc.proxy)(context.Background(), env, state.DefaultIntent(), st)
			require.ErrorIs(t, err, contracts.ErrAttachMismatch)
			require.Empty(t, c.deploys)
			require.Empty(t, c.sent)
		})
	}
}

func TestUpgradeVerifierMissingKeys(t *testing.T) {
	c := newFakeChain()
	c.installProxy(liveShuffle, liveVerifier)
	network := &state.Network{Shuffle: liveShuffle}
	reg, err := network.Registry()
	require.NoError(t, err)

	env := newTestEnv(t, c, network, reg)
	err = UpgradeVerifier(common.Address{})(context.Background(), env, state.DefaultIntent(), state.NewState("x", "upgrade", c.Address()))
	require.ErrorIs(t, err, state.ErrDependencyMissing)
	require.Empty(t, c.deploys)
}

func TestUpgradeVerifierNoProxy(t *testing.T) {
	c := newFakeChain()
	env := newTestEnv(t, c, &state.Network{}, nil)
	err := UpgradeVerifier(common.Address{})(context.Background(), env, state.DefaultIntent(), state.NewState("x", "upgrade", c.Address()))
	require.ErrorIs(t, err, state.ErrDependencyMissing)
	require.Empty(t, c.deploys)
}

func TestUpgradeVerifierArtifactWithoutVerify(t *testing.T) {
	c := newFakeChain()
	network, reg := liveNetwork(t, c)
	env := newTestEnv(t, c, network, reg)
	intent := state.DefaultIntent()
	intent.Contracts.UpgradeVerifier = "VerifierKey_52_1"

	err := UpgradeVerifier(common.Address{})(context.Background(), env, intent, state.NewState("x", "upgrade", c.Address()))
	require.ErrorIs(t, err, ErrArtifactMismatch)
	require.Empty(t, c.deploys)
	require.Empty(t, c.sent)
}
