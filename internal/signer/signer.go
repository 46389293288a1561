package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"farm-sync/internal/items"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrKeyUnavailable    = errors.New("signer key unavailable")
	ErrSignatureMismatch = errors.New("signature does not match address")
)

// Claim: точные дельты одной сессии фермы, за которые ручается сервер.
type Claim struct {
	Sender    common.Address
	FarmID    int64
	SessionID string
	SFL       *big.Int
	// имя предмета -> on-chain единицы
	Inventory map[string]*big.Int
}

type SignedSettlement struct {
	Sender    string            `json:"sender"`
	FarmID    int64             `json:"farmId"`
	SessionID string            `json:"sessionId"`
	SFL       string            `json:"sfl"`
	Inventory map[uint64]string `json:"inventory"`
	Signature string            `json:"signature"`
}

type KeySource func() (*ecdsa.PrivateKey, error)

// HexKey читает приватный ключ secp256k1 из hex, с 0x или без.
func HexKey(hexKey string) KeySource {
	return func() (*ecdsa.PrivateKey, error) {
		trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
		if trimmed == "" {
			return nil, errors.New("empty private key")
		}
		key, err := crypto.HexToECDSA(trimmed)
		if err != nil {
			// не логируем и не возвращаем сам ключ
			return nil, errors.New("malformed private key")
		}
		return key, nil
	}
}

// Signer владеет ключом подписи. Ключ читается один раз при первом
// использовании и дальше не меняется.
type Signer struct {
	registry *items.Registry
	source   KeySource

	once   sync.Once
	key    *ecdsa.PrivateKey
	keyErr error
}

func New(registry *items.Registry, source KeySource) *Signer {
	return &Signer{registry: registry, source: source}
}

func (s *Signer) loadKey() (*ecdsa.PrivateKey, error) {
	s.once.Do(func() {
		if s.source == nil {
			s.keyErr = ErrKeyUnavailable
			return
		}
		key, err := s.source()
		if err != nil {
			s.keyErr = fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
			return
		}
		s.key = key
	})
	return s.key, s.keyErr
}

func (s *Signer) Address() (common.Address, error) {
	key, err := s.loadKey()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// Digest возвращает keccak256 от ABI-кодировки claim, без префикса personal-message.
func (s *Signer) Digest(claim Claim) ([]byte, error) {
	digest, _, err := s.digest(claim)
	return digest, err
}

func (s *Signer) digest(claim Claim) ([]byte, []entry, error) {
	entries, err := sortedEntries(s.registry, claim.Inventory)
	if err != nil {
		return nil, nil, err
	}
	packed, err := encode(claim, entries)
	if err != nil {
		return nil, nil, err
	}
	return crypto.Keccak256(packed), entries, nil
}

func (s *Signer) Sign(claim Claim) (SignedSettlement, error) {
	key, err := s.loadKey()
	if err != nil {
		return SignedSettlement{}, err
	}

	digest, entries, err := s.digest(claim)
	if err != nil {
		return SignedSettlement{}, err
	}

	sig, err := crypto.Sign(accounts.TextHash(digest), key)
	if err != nil {
		return SignedSettlement{}, fmt.Errorf("sign settlement: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	inventory := make(map[uint64]string, len(entries))
	for _, e := range entries {
		inventory[e.id] = e.amount.String()
	}
	sfl := "0"
	if claim.SFL != nil {
		sfl = claim.SFL.String()
	}

	return SignedSettlement{
		Sender:    claim.Sender.Hex(),
		FarmID:    claim.FarmID,
		SessionID: claim.SessionID,
		SFL:       sfl,
		Inventory: inventory,
		Signature: hexutil.Encode(sig),
	}, nil
}

// VerifyPersonal проверяет подпись eth_sign / personal_sign.
func VerifyPersonal(address common.Address, message []byte, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: signature length %d", ErrSignatureMismatch, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if crypto.PubkeyToAddress(*pub) != address {
		return ErrSignatureMismatch
	}
	return nil
}
