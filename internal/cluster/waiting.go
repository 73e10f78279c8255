package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/openshift/assisted-test-framework/internal/client"
	"github.com/openshift/assisted-test-framework/internal/consts"
	"github.com/openshift/assisted-test-framework/internal/resources"
)

var (
	// ErrTimeout is returned when a wait does not complete in time.
	ErrTimeout = errors.New("timed out")
	// ErrInstallFailed is returned when a host or cluster reaches a failed state.
	ErrInstallFailed = errors.New("installation failed")
)

// WaitOptions tunes a status wait.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
	// StatusInfo must prefix the status_info of a host for it to count.
	StatusInfo string
	// FallOnErrorStatus aborts the wait as soon as a host is in error.
	FallOnErrorStatus bool
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Interval <= 0 {
		o.Interval = consts.DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = consts.NodesRegisteredTimeout
	}

	return o
}

type hostsGetter interface {
	GetClusterHosts(ctx context.Context, clusterID string) ([]client.Host, error)
}

type clusterGetter interface {
	ClusterGet(ctx context.Context, clusterID string) (*client.Cluster, error)
}

// WaitTillAllHostsAreInStatus polls the cluster hosts until at least
// nodesCount of them are in one of statuses.
func WaitTillAllHostsAreInStatus(
	ctx context.Context,
	api hostsGetter,
	clusterID string,
	nodesCount int,
	statuses []string,
	opts WaitOptions,
) error {
	opts = opts.withDefaults()
	resources.LogLevel("info", "Waiting up to %s for %d hosts of cluster %s to be in %v",
		opts.Timeout, nodesCount, clusterID, statuses)

	return poll(ctx, opts.Timeout, opts.Interval, func() (bool, error) {
		hosts, err := api.GetClusterHosts(ctx, clusterID)
		if err != nil {
			return false, err
		}

		return areHostsInStatus(hosts, nodesCount, statuses, opts.StatusInfo, opts.FallOnErrorStatus)
	}, fmt.Sprintf("%d hosts of cluster %s in %v", nodesCount, clusterID, statuses))
}

func areHostsInStatus(
	hosts []client.Host,
	nodesCount int,
	statuses []string,
	statusInfo string,
	fallOnErrorStatus bool,
) (bool, error) {
	inStatus := 0
	var inError []string
	current := make([]string, 0, len(hosts))

	for _, h := range hosts {
		if slices.Contains(statuses, h.Status) && strings.HasPrefix(h.StatusInfo, statusInfo) {
			inStatus++
		}
		if h.Status == consts.HostStatusError {
			inError = append(inError, fmt.Sprintf("%s: %s", h.ID, h.StatusInfo))
		}
		current = append(current, h.Status)
	}

	if inStatus >= nodesCount {
		return true, nil
	}

	if fallOnErrorStatus && len(inError) > 0 {
		resources.LogLevel("error", "Some of the hosts are in insufficient or error status: %v", inError)
		return false, fmt.Errorf("%w: hosts in error: %s", ErrInstallFailed, strings.Join(inError, "; "))
	}

	resources.LogLevel("info", "Asked hosts to be in one of the statuses from %v and currently hosts statuses are %v",
		statuses, current)

	return false, nil
}

// waitForClusterStatus polls the cluster until it reaches one of statuses,
// failing early on any of failStatuses.
func waitForClusterStatus(
	ctx context.Context,
	api clusterGetter,
	clusterID string,
	statuses, failStatuses []string,
	timeout, interval time.Duration,
) error {
	return poll(ctx, timeout, interval, func() (bool, error) {
		c, err := api.ClusterGet(ctx, clusterID)
		if err != nil {
			return false, err
		}

		if slices.Contains(failStatuses, c.Status) {
			return false, fmt.Errorf("%w: cluster %s is %s: %s", ErrInstallFailed, clusterID, c.Status, c.StatusInfo)
		}

		resources.LogLevel("debug", "Cluster %s status: %s", clusterID, c.Status)

		return slices.Contains(statuses, c.Status), nil
	}, fmt.Sprintf("cluster %s in %v", clusterID, statuses))
}

// poll calls check right away and then every interval until it reports done
// or fails. It gives up after timeout.
func poll(ctx context.Context, timeout, interval time.Duration, check func() (bool, error), waitingFor string) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	deadline := time.After(timeout)

	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", waitingFor, ctx.Err())
		case <-deadline:
			return fmt.Errorf("%w after %s waiting for %s", ErrTimeout, timeout, waitingFor)
		case <-ticker.C:
		}
	}
}
