// Package clienttest runs an in-memory assisted service for tests.
package clienttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openshift/assisted-test-framework/internal/client"
	"github.com/openshift/assisted-test-framework/internal/consts"
)

// HostUpdate records a host PATCH received by the service.
type HostUpdate struct {
	InfraEnvID string
	HostID     string
	Params     client.HostUpdateParams
}

// Service is a fake assisted service. Handlers mutate its state under mu.
type Service struct {
	Token        string
	OfflineToken string
	ImageContent []byte
	LogsContent  []byte

	// OnClusterGet runs before a cluster is returned, letting tests move the
	// cluster and its hosts through statuses between polls.
	OnClusterGet func(c *client.Cluster)

	mu             sync.Mutex
	clusters       map[string]*client.Cluster
	infraEnvs      map[string]*client.InfraEnv
	infraEnvParams []client.InfraEnvCreateParams
	clusterUpdates []client.ClusterUpdateParams
	hostUpdates    []HostUpdate
	installs       []string
	hostInstalls   []string

	server *httptest.Server
}

// NewService starts the fake service.
func NewService() *Service {
	s := &Service{
		ImageContent: []byte("ISO"),
		LogsContent:  []byte("LOGS"),
		clusters:     map[string]*client.Cluster{},
		infraEnvs:    map[string]*client.InfraEnv{},
	}
	s.server = httptest.NewServer(s.router())

	return s
}

// URL returns the base url to hand to client.NewInventoryClient.
func (s *Service) URL() string {
	return s.server.URL
}

// Close stops the server.
func (s *Service) Close() {
	s.server.Close()
}

// AddCluster stores a cluster, assigning an id when empty, and returns the id.
func (s *Service) AddCluster(c client.Cluster) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = consts.ClusterStatusInsufficient
	}
	s.clusters[c.ID] = &c

	return c.ID
}

// SetHosts replaces the hosts of a cluster.
func (s *Service) SetHosts(clusterID string, hosts []client.Host) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clusters[clusterID].Hosts = hosts
}

// Cluster returns a copy of a stored cluster.
func (s *Service) Cluster(clusterID string) client.Cluster {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *s.clusters[clusterID]
	c.Hosts = append([]client.Host(nil), c.Hosts...)

	return c
}

// InfraEnvParams returns every infra-env registration received.
func (s *Service) InfraEnvParams() []client.InfraEnvCreateParams {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]client.InfraEnvCreateParams(nil), s.infraEnvParams...)
}

// ClusterUpdates returns every cluster PATCH received.
func (s *Service) ClusterUpdates() []client.ClusterUpdateParams {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]client.ClusterUpdateParams(nil), s.clusterUpdates...)
}

// HostUpdates returns every host PATCH received.
func (s *Service) HostUpdates() []HostUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]HostUpdate(nil), s.hostUpdates...)
}

// Installs returns the ids of clusters an install was requested for.
func (s *Service) Installs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.installs...)
}

// HostInstalls returns the ids of hosts an install was requested for.
func (s *Service) HostInstalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.hostInstalls...)
}

// HostInventory renders the inventory JSON of a host with one interface per mac.
func HostInventory(hostname string, macs ...string) string {
	type iface struct {
		Name          string   `json:"name"`
		MacAddress    string   `json:"mac_address"`
		IPv4Addresses []string `json:"ipv4_addresses"`
		IPv6Addresses []string `json:"ipv6_addresses"`
	}

	inv := struct {
		Hostname   string  `json:"hostname"`
		Interfaces []iface `json:"interfaces"`
	}{Hostname: hostname}

	for i, mac := range macs {
		inv.Interfaces = append(inv.Interfaces, iface{
			Name:          fmt.Sprintf("ens%d", 3+i),
			MacAddress:    mac,
			IPv4Addresses: []string{fmt.Sprintf("192.168.127.%d/24", 10+i)},
			IPv6Addresses: []string{},
		})
	}

	data, _ := json.Marshal(inv)

	return string(data)
}

func (s *Service) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.auth)

	r.Route(consts.APIPrefix, func(r chi.Router) {
		r.Get("/clusters/{clusterID}", s.getCluster)
		r.Patch("/clusters/{clusterID}", s.updateCluster)
		r.Post("/clusters/{clusterID}/actions/install", s.installCluster)
		r.Get("/clusters/{clusterID}/logs", s.clusterLogs)
		r.Post("/infra-envs", s.createInfraEnv)
		r.Get("/infra-envs/{infraEnvID}", s.getInfraEnv)
		r.Get("/infra-envs/{infraEnvID}/downloads/image-url", s.imageURL)
		r.Patch("/infra-envs/{infraEnvID}/hosts/{hostID}", s.updateHost)
		r.Post("/infra-envs/{infraEnvID}/hosts/{hostID}/actions/install", s.installHost)
	})
	r.Get("/images/{infraEnvID}.iso", s.image)
	r.Post("/token", s.exchangeToken)

	return r
}

func (s *Service) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && strings.HasPrefix(r.URL.Path, consts.APIPrefix) &&
			r.Header.Get("Authorization") != "Bearer "+s.Token {
			http.Error(w, `{"reason":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// exchangeToken answers a refresh_token grant for OfflineToken with Token.
func (s *Service) exchangeToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("client_id") != consts.SSOClientID ||
		s.OfflineToken == "" || r.PostForm.Get("refresh_token") != s.OfflineToken {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.Token,
		"token_type":   "Bearer",
		"expires_in":   900,
	})
}

// TokenURL is the sso token endpoint of the service.
func (s *Service) TokenURL() string {
	return s.server.URL + "/token"
}

func (s *Service) getCluster(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[chi.URLParam(r, "clusterID")]
	if !ok {
		notFound(w, "cluster")
		return
	}
	if s.OnClusterGet != nil {
		s.OnClusterGet(c)
	}

	writeJSON(w, http.StatusOK, c)
}

func (s *Service) updateCluster(w http.ResponseWriter, r *http.Request) {
	var params client.ClusterUpdateParams
	if !decode(w, r, &params) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[chi.URLParam(r, "clusterID")]
	if !ok {
		notFound(w, "cluster")
		return
	}

	s.clusterUpdates = append(s.clusterUpdates, params)
	if params.PullSecret != nil {
		c.PullSecretSet = *params.PullSecret != ""
	}
	if params.Name != nil {
		c.Name = *params.Name
	}
	if params.BaseDNSDomain != nil {
		c.BaseDNSDomain = *params.BaseDNSDomain
	}

	writeJSON(w, http.StatusCreated, c)
}

func (s *Service) installCluster(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[chi.URLParam(r, "clusterID")]
	if !ok {
		notFound(w, "cluster")
		return
	}

	if c.Status != consts.ClusterStatusReady {
		writeJSON(w, http.StatusConflict, map[string]string{
			"reason": fmt.Sprintf("cluster is in %s state, expected ready", c.Status),
		})
		return
	}

	s.installs = append(s.installs, c.ID)
	c.Status = consts.ClusterStatusPreparing
	writeJSON(w, http.StatusAccepted, c)
}

func (s *Service) clusterLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	_, ok := s.clusters[chi.URLParam(r, "clusterID")]
	s.mu.Unlock()

	if !ok {
		notFound(w, "cluster")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(s.LogsContent)
}

func (s *Service) createInfraEnv(w http.ResponseWriter, r *http.Request) {
	var params client.InfraEnvCreateParams
	if !decode(w, r, &params) {
		return
	}

	if params.PullSecret == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"reason": "pull_secret is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	infraEnv := &client.InfraEnv{
		ID:                     id,
		Name:                   params.Name,
		ClusterID:              params.ClusterID,
		OpenshiftVersion:       params.OpenshiftVersion,
		Type:                   params.ImageType,
		DownloadURL:            s.server.URL + "/images/" + id + ".iso",
		SSHAuthorizedKey:       params.SSHAuthorizedKey,
		StaticNetworkConfig:    params.StaticNetworkConfig,
		IgnitionConfigOverride: params.IgnitionConfigOverride,
		Proxy:                  params.Proxy,
	}
	s.infraEnvs[id] = infraEnv
	s.infraEnvParams = append(s.infraEnvParams, params)

	writeJSON(w, http.StatusCreated, infraEnv)
}

func (s *Service) getInfraEnv(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infraEnv, ok := s.infraEnvs[chi.URLParam(r, "infraEnvID")]
	if !ok {
		notFound(w, "infra-env")
		return
	}

	writeJSON(w, http.StatusOK, infraEnv)
}

func (s *Service) imageURL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "infraEnvID")

	s.mu.Lock()
	_, ok := s.infraEnvs[id]
	s.mu.Unlock()

	if !ok {
		notFound(w, "infra-env")
		return
	}

	writeJSON(w, http.StatusOK, client.PresignedURL{URL: s.server.URL + "/images/" + id + ".iso"})
}

func (s *Service) updateHost(w http.ResponseWriter, r *http.Request) {
	var params client.HostUpdateParams
	if !decode(w, r, &params) {
		return
	}

	infraEnvID := chi.URLParam(r, "infraEnvID")
	hostID := chi.URLParam(r, "hostID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.infraEnvs[infraEnvID]; !ok {
		notFound(w, "infra-env")
		return
	}

	s.hostUpdates = append(s.hostUpdates, HostUpdate{InfraEnvID: infraEnvID, HostID: hostID, Params: params})

	h := s.findHost(hostID)
	if h == nil {
		notFound(w, "host")
		return
	}

	if params.HostName != nil {
		h.RequestedHostname = *params.HostName
	}
	if params.HostRole != nil {
		h.Role = *params.HostRole
	}

	writeJSON(w, http.StatusCreated, h)
}

func (s *Service) installHost(w http.ResponseWriter, r *http.Request) {
	hostID := chi.URLParam(r, "hostID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.infraEnvs[chi.URLParam(r, "infraEnvID")]; !ok {
		notFound(w, "infra-env")
		return
	}

	h := s.findHost(hostID)
	if h == nil {
		notFound(w, "host")
		return
	}

	if h.Status != consts.HostStatusKnown {
		writeJSON(w, http.StatusConflict, map[string]string{
			"reason": fmt.Sprintf("host is in %s state, expected known", h.Status),
		})
		return
	}

	s.hostInstalls = append(s.hostInstalls, hostID)
	h.Status = consts.HostStatusInstalling
	writeJSON(w, http.StatusAccepted, h)
}

func (s *Service) findHost(hostID string) *client.Host {
	for _, c := range s.clusters {
		for i := range c.Hosts {
			if c.Hosts[i].ID == hostID {
				return &c.Hosts[i]
			}
		}
	}

	return nil
}

func (s *Service) image(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	_, ok := s.infraEnvs[chi.URLParam(r, "infraEnvID")]
	s.mu.Unlock()

	if !ok {
		notFound(w, "image")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(s.ImageContent)
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"reason": err.Error()})
		return false
	}

	return true
}

func notFound(w http.ResponseWriter, kind string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"reason": kind + " not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
