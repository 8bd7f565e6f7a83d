package api

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blocktrace/blocktrace/internal/auth"
	"github.com/blocktrace/blocktrace/internal/config"
	"github.com/blocktrace/blocktrace/internal/esg"
	"github.com/blocktrace/blocktrace/internal/model"
)

const testPrincipal = "2vxsx-fae"

type fakeBackend struct {
	mu        sync.Mutex
	histories map[string][]model.Step
	products  []string
	scores    map[string]*model.ESGScore
	allScores []model.ESGScore
	added     []model.StepInput
	count     uint64
	info      string
	err       error
}

func (b *fakeBackend) GetProductHistory(_ context.Context, productID, _ string) ([]model.Step, error) {
	if b.err != nil {
		return nil, b.err
	}
	steps := b.histories[productID]
	if steps == nil {
		return []model.Step{}, nil
	}
	return steps, nil
}

func (b *fakeBackend) GetAllProducts(context.Context, string) ([]string, error) {
	return b.products, b.err
}

func (b *fakeBackend) AddStep(_ context.Context, in model.StepInput, _ string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}
	b.mu.Lock()
	b.added = append(b.added, in)
	b.mu.Unlock()
	return "Step added successfully", nil
}

func (b *fakeBackend) GetTotalStepsCount(context.Context, string) (uint64, error) {
	return b.count, b.err
}

func (b *fakeBackend) GetCanisterInfo(context.Context, string) (string, error) {
	return b.info, b.err
}

func (b *fakeBackend) CalculateESGScore(_ context.Context, productID, _ string) (*model.ESGScore, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.scores[productID], nil
}

func (b *fakeBackend) GetAllESGScores(context.Context, string) ([]model.ESGScore, error) {
	return b.allScores, b.err
}

type fakeNFT struct {
	nfts      map[model.TokenID]model.NFTMetadata
	passports map[model.TokenID]json.RawMessage
	next      model.TokenID
	err       error
}

func newFakeNFT() *fakeNFT {
	return &fakeNFT{
		nfts:      map[model.TokenID]model.NFTMetadata{},
		passports: map[model.TokenID]json.RawMessage{},
	}
}

func (n *fakeNFT) MintSimple(_ context.Context, meta model.NFTMetadata, _ string) (model.TokenID, error) {
	if n.err != nil {
		return 0, n.err
	}
	if err := model.Validate(meta); err != nil {
		return 0, err
	}
	id := n.next
	n.next++
	n.nfts[id] = meta
	return id, nil
}

func (n *fakeNFT) GetMetadataSimple(_ context.Context, id model.TokenID, _ string) (*model.NFTMetadata, error) {
	if n.err != nil {
		return nil, n.err
	}
	meta, ok := n.nfts[id]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

func (n *fakeNFT) GetAllNFTsSimple(context.Context, string) ([]model.NFT, error) {
	if n.err != nil {
		return nil, n.err
	}
	var out []model.NFT
	for id := model.TokenID(0); id < n.next; id++ {
		if meta, ok := n.nfts[id]; ok {
			out = append(out, model.NFT{TokenID: id, Metadata: meta})
		}
	}
	return out, nil
}

func (n *fakeNFT) MintPassport(_ context.Context, passport json.RawMessage, _ string) (model.TokenID, error) {
	if n.err != nil {
		return 0, n.err
	}
	id := n.next
	n.next++
	n.passports[id] = passport
	return id, nil
}

func (n *fakeNFT) GetPassport(_ context.Context, id model.TokenID, _ string) (json.RawMessage, error) {
	if n.err != nil {
		return nil, n.err
	}
	return n.passports[id], nil
}

type memStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
}

func (m *memStore) SaveSession(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type testEnv struct {
	deps    Dependencies
	backend *fakeBackend
	nft     *fakeNFT
	store   *memStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("api-test-secret", time.Hour)
	require.NoError(t, err)
	store := &memStore{sessions: map[string]model.Session{}}
	mgr, err := auth.NewManager(store, tokens, model.AuthPlugWallet, auth.NewPlugWallet())
	require.NoError(t, err)

	be := &fakeBackend{histories: map[string][]model.Step{}, scores: map[string]*model.ESGScore{}}
	nfts := newFakeNFT()
	cfg := &config.Config{}
	cfg.Demo.Seed = 42

	return &testEnv{
		deps: Dependencies{
			Config:  cfg,
			Auth:    mgr,
			Backend: be,
			NFT:     nfts,
			Fleet:   esg.NewFleetService(be),
			Now:     func() time.Time { return time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC) },
		},
		backend: be,
		nft:     nfts,
		store:   store,
	}
}

// login signs in as testPrincipal and returns the bearer token.
func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	token, _, err := e.deps.Auth.Login(context.Background(), auth.Credentials{Credential: testPrincipal})
	require.NoError(t, err)
	return token
}

func f64(v float64) *float64 { return &v }
func u8(v uint8) *uint8      { return &v }
func str(v string) *string   { return &v }

func sampleSteps() []model.Step {
	truck := model.TransportTruck
	base := uint64(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	return []model.Step{
		{
			ProductID: "coffee-1", ActorName: "Finca Alta", Role: "farmer", Action: "harvested",
			Location: "Huila, Colombia", Timestamp: base,
			GPSLatitude: f64(2.5), GPSLongitude: f64(-75.5), QualityScore: u8(92),
		},
		{
			ProductID: "coffee-1", ActorName: "Andes Freight", Role: "transporter", Action: "shipped",
			Location: "Cartagena, Colombia", Timestamp: base + uint64(48*time.Hour),
			TransportMode: &truck, DistanceKm: f64(900), CarbonFootprintKg: f64(145.8),
			GPSLatitude: f64(10.4), GPSLongitude: f64(-75.5), Status: str("delay"), QualityScore: u8(70),
		},
		{
			ProductID: "coffee-1", ActorName: "Roastery", Role: "retailer", Action: "received",
			Location: "Hamburg, Germany", Timestamp: base + uint64(400*time.Hour),
		},
	}
}
