package terraform

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gruntwork-io/terratest/modules/terraform"

	"github.com/openshift/assisted-test-framework/internal/consts"
)

// NameToMACs reads the tfvars JSON of tfFolder and maps every node name to
// its primary and secondary MAC addresses, lower-cased.
func NameToMACs(tfFolder string) (map[string][]string, error) {
	varsFile := filepath.Join(tfFolder, consts.TFVarsJSONName)

	vars := map[string]interface{}{}
	if err := terraform.GetAllVariablesFromVarFileE(&testing.T{}, varsFile, &vars); err != nil {
		return nil, fmt.Errorf("read %s: %w", varsFile, err)
	}

	clusterName, ok := vars["cluster_name"].(string)
	if !ok || clusterName == "" {
		return nil, fmt.Errorf("%s: cluster_name is not set", varsFile)
	}

	mapping := map[string][]string{}
	for _, role := range []string{consts.RoleMaster, consts.RoleWorker} {
		count, err := intVar(vars, role+"_count")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", varsFile, err)
		}

		primary := stringList(vars["libvirt_"+role+"_macs"])
		secondary := stringList(vars["libvirt_secondary_"+role+"_macs"])

		for i := 0; i < count; i++ {
			var macs []string
			if i < len(primary) {
				macs = append(macs, strings.ToLower(primary[i]))
			}
			if i < len(secondary) {
				macs = append(macs, strings.ToLower(secondary[i]))
			}
			mapping[fmt.Sprintf("%s-%s-%d", clusterName, role, i)] = macs
		}
	}

	return mapping, nil
}

func intVar(vars map[string]interface{}, key string) (int, error) {
	switch v := vars[key].(type) {
	case nil:
		return 0, nil
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s has unexpected type %T", key, v)
	}
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
