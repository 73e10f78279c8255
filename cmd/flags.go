package cmd

import (
	"sort"
	"strings"

	"github.com/openshift/assisted-test-framework/internal/config"
)

// CriteriaFlag collects key=value inventory host criteria. It can be set
// several times and each value may hold comma separated pairs.
type CriteriaFlag map[string]string

func (c *CriteriaFlag) String() string {
	if c == nil || len(*c) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(*c))
	for k, v := range *c {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	return strings.Join(pairs, ",")
}

func (c *CriteriaFlag) Set(value string) error {
	parsed, err := config.ParseCriteria(value)
	if err != nil {
		return err
	}

	if *c == nil {
		*c = CriteriaFlag{}
	}
	for k, v := range parsed {
		(*c)[k] = v
	}

	return nil
}

// Type names the flag value in cobra help output.
func (c *CriteriaFlag) Type() string {
	return "key=value"
}
