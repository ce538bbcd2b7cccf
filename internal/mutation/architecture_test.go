package mutation

import (
	"testing"

	"boardcore/testutil"
)

func TestMutationCoreHasNoInfrastructureDependencies(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfrastructureImportForbidden, "mutation core talks to servers only through Transport")
	testutil.AssertNoTransitiveDependency(t, ".", testutil.InfrastructureImportForbidden, "mutation core talks to servers only through Transport")
}
