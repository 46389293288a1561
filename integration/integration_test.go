package integration

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"farm-sync/internal/api"
	"farm-sync/internal/config"
	"farm-sync/internal/db"
	"farm-sync/internal/items"
	"farm-sync/internal/middleware"
	"farm-sync/internal/models"
	"farm-sync/internal/service"
	"farm-sync/internal/signer"
	"farm-sync/pkg"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	storedSession = "0x0000000000000000000000000000000000000000000000000000000000000001"
	landedSession = "0x0000000000000000000000000000000000000000000000000000000000000002"
)

// fakeChain подменяет игровые контракты
type fakeChain struct {
	session string
	sfl     *big.Int
	wood    int64
}

func (f *fakeChain) SupplyOf(ctx context.Context, id uint64) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeChain) SessionOf(ctx context.Context, farmID int64) (string, error) {
	return f.session, nil
}

func (f *fakeChain) BalancesOf(ctx context.Context, account common.Address, ids []uint64) (*big.Int, []*big.Int, error) {
	amounts := make([]*big.Int, len(ids))
	for i, id := range ids {
		amounts[i] = new(big.Int)
		if id == 601 {
			amounts[i].SetInt64(f.wood)
		}
	}
	return f.sfl, amounts, nil
}

type noLock struct{}

func (noLock) Lock(ctx context.Context, farmID int64) (func(), error) {
	return func() {}, nil
}

func setupTestDB(t *testing.T) *sql.DB {
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("set INTEGRATION=1 to run against a live database")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	dbConn, err := db.Connect(cfg)
	if err != nil {
		t.Fatalf("failed to connect to db: %v", err)
	}
	if err := db.Migrate(dbConn, "../migrations"); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	_, err = dbConn.Exec("TRUNCATE TABLE farms RESTART IDENTITY CASCADE")
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return dbConn
}

func createTestServer(dbConn *sql.DB, cfg *config.Config, chain *fakeChain, key *ecdsa.PrivateKey) *echo.Echo {
	log := pkg.NewZapLogger(zap.NewNop())
	s := signer.New(items.Catalogue(), func() (*ecdsa.PrivateKey, error) { return key, nil })

	e := echo.New()
	e.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret, log, api.AuthPath))
	api.RegisterHandlers(e, &api.Handlers{
		Reconciler:     service.NewReconciler(db.NewFarmDB(dbConn), chain, chain, s, log),
		AuthService:    service.NewAuthService(log, cfg.JWTSecret, time.Hour),
		Locker:         noLock{},
		Logger:         log,
		RequestTimeout: 5 * time.Second,
	})
	return e
}

func insertFarm(t *testing.T, dbConn *sql.DB, owner string, current, previous models.FarmSession) int64 {
	t.Helper()
	cur, _ := json.Marshal(current)
	prev, _ := json.Marshal(previous)
	var id int64
	err := dbConn.QueryRow(
		`INSERT INTO farms (owner, farm_address, session_id, game_state, previous_game_state)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		owner, "0x2222222222222222222222222222222222222222", storedSession, cur, prev,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert farm: %v", err)
	}
	return id
}

func post(t *testing.T, url, token string, body interface{}) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("failed to perform request: %v", err)
	}
	return resp
}

func login(t *testing.T, baseURL string, wallet *ecdsa.PrivateKey) (string, string) {
	t.Helper()
	address := crypto.PubkeyToAddress(wallet.PublicKey).Hex()
	sig, err := crypto.Sign(accounts.TextHash([]byte(service.LoginMessage(address))), wallet)
	if err != nil {
		t.Fatalf("failed to sign login: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	resp := post(t, baseURL+"/api/auth", "", api.AuthRequest{Address: address, Signature: hexutil.Encode(sig)})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed with status %d", resp.StatusCode)
	}
	var body api.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Token == nil {
		t.Fatalf("failed to decode token: %v", err)
	}
	return address, *body.Token
}

func TestIntegration_SyncMintConfirm(t *testing.T) {
	dbConn := setupTestDB(t)
	defer dbConn.Close()

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	serverKey, _ := crypto.GenerateKey()
	wallet, _ := crypto.GenerateKey()
	chain := &fakeChain{session: storedSession}

	ts := httptest.NewServer(createTestServer(dbConn, cfg, chain, serverKey))
	defer ts.Close()

	address, token := login(t, ts.URL, wallet)
	farmID := insertFarm(t, dbConn, address,
		models.FarmSession{Balance: "60", Inventory: map[string]string{"Wood": "150"}},
		models.FarmSession{Balance: "10", Inventory: map[string]string{"Wood": "100"}},
	)

	// sync
	resp := post(t, ts.URL+"/api/sync", token, api.SyncRequest{FarmID: farmID, Sender: address})
	var synced signer.SignedSettlement
	if err := json.NewDecoder(resp.Body).Decode(&synced); err != nil {
		t.Fatalf("failed to decode sync: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d", resp.StatusCode)
	}
	if synced.SFL != "50000000000000000000" || synced.Inventory[601] != "50" {
		t.Errorf("unexpected settlement: %+v", synced)
	}

	// mint
	resp = post(t, ts.URL+"/api/mint", token, api.MintRequest{
		FarmID: farmID, SessionID: storedSession, Sender: address, Item: "Christmas Tree",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mint: expected 200, got %d", resp.StatusCode)
	}

	var version int
	var state []byte
	if err := dbConn.QueryRow("SELECT version, game_state FROM farms WHERE id=$1", farmID).Scan(&version, &state); err != nil {
		t.Fatalf("failed to read farm: %v", err)
	}
	var stored models.FarmSession
	if err := json.Unmarshal(state, &stored); err != nil {
		t.Fatalf("failed to decode stored state: %v", err)
	}
	if version != 2 || stored.Inventory["Christmas Tree"] != "1" || stored.Balance != "10" {
		t.Errorf("crafted state not stored: version=%d state=%s", version, state)
	}

	// confirm до того, как settlement попал в сеть
	resp = post(t, ts.URL+"/api/confirm", token, api.ConfirmRequest{FarmID: farmID, Sender: address})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("confirm pending: expected 409, got %d", resp.StatusCode)
	}

	chain.session = landedSession
	chain.sfl, _ = new(big.Int).SetString("10000000000000000000", 10)
	chain.wood = 50
	resp = post(t, ts.URL+"/api/confirm", token, api.ConfirmRequest{FarmID: farmID, Sender: address})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", resp.StatusCode)
	}

	var session string
	if err := dbConn.QueryRow("SELECT session_id FROM farms WHERE id=$1", farmID).Scan(&session); err != nil {
		t.Fatalf("failed to read farm: %v", err)
	}
	if session != landedSession {
		t.Errorf("expected session %s, got %s", landedSession, session)
	}
}
