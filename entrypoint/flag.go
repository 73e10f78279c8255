// Package entrypoint holds the flags shared by the e2e suites.
package entrypoint

import (
	"flag"
	"os"

	"github.com/openshift/assisted-test-framework/cmd"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

// RunFlags controls what an e2e run does besides the checks themselves.
type RunFlags struct {
	HostCriteria      cmd.CriteriaFlag
	Provision         bool
	Destroy           bool
	Install           bool
	AllowInsufficient bool
	LogsDir           string
}

var Flags RunFlags

type flagAction func(name string)

// AddFlags registers the named flags and parses the command line.
func AddFlags(flagNames ...string) {
	if len(flagNames) == 0 {
		resources.LogLevel("error", "No flags provided")
		os.Exit(1)
	}

	for _, name := range flagNames {
		action, exists := flagActions[name]
		if !exists {
			resources.LogLevel("error", "Invalid flag name provided: %s", name)
			os.Exit(1)
		}
		action(name)
	}

	flag.Parse()
}

var flagActions = map[string]flagAction{
	"hostCriteria": func(name string) {
		flag.Var(&Flags.HostCriteria, name, "key=value criteria selecting the CI machine, overrides HOST_CRITERIA")
	},
	"provision": func(name string) {
		flag.BoolVar(&Flags.Provision, name, false, "Create the libvirt nodes with terraform on a CI machine from the inventory")
	},
	"destroy": func(name string) {
		flag.BoolVar(&Flags.Destroy, name, false, "Destroy the provisioned nodes after the run")
	},
	"install": func(name string) {
		flag.BoolVar(&Flags.Install, name, false, "Install the cluster once hosts are discovered")
	},
	"allowInsufficient": func(name string) {
		flag.BoolVar(&Flags.AllowInsufficient, name, false, "Count insufficient hosts as discovered")
	},
	"logsDir": func(name string) {
		flag.StringVar(&Flags.LogsDir, name, "", "Directory the cluster logs are collected into after the run")
	},
}
