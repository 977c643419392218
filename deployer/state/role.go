package state

import "fmt"

// Role names a logical position in the contract dependency graph.
type Role string

const (
	RoleVerifierKeyA      Role = "verifierKeyA"
	RoleVerifierKeyB      Role = "verifierKeyB"
	RoleCompositeVerifier Role = "compositeVerifier"
	RoleShuffleProxy      Role = "shuffleProxy"
	RoleUpgradeVerifier   Role = "upgradeVerifier"
	RoleProxyFactory      Role = "proxyFactory"

	// RoleImplementation marks the logic contract behind a proxy in the run
	// report.
	RoleImplementation Role = "implementation"
)

var knownRoles = map[Role]struct{}{
	RoleVerifierKeyA:      {},
	RoleVerifierKeyB:      {},
	RoleCompositeVerifier: {},
	RoleShuffleProxy:      {},
	RoleUpgradeVerifier:   {},
	RoleProxyFactory:      {},
	RoleImplementation:    {},
}

func (r Role) Check() error {
	if _, ok := knownRoles[r]; !ok {
		return fmt.Errorf("unknown contract role %q", string(r))
	}
	return nil
}

func (r Role) String() string {
	return string(r)
}
