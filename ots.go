package forge

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// DefaultCalendars is the default set of OTS calendar endpoints.
var DefaultCalendars = []string{
	"http://a.pool.opentimestamps.org",
	"http://b.pool.opentimestamps.org",
	"http://a.pool.eternitywall.com",
}

const (
	otsUserAgent      = "forge-ots-client/1"
	otsRequestTimeout = 10 * time.Second
)

// CalendarSubmission is the per-calendar outcome of a submit_to_ots call.
type CalendarSubmission struct {
	Calendar       string `json:"calendar"`
	Status         string `json:"status"` // "submitted" or "error"
	ResponseHex    string `json:"response_bytes_hex,omitempty"`
	ResponseLength int    `json:"response_length,omitempty"`
	Error          string `json:"error,omitempty"`
	SubmittedAt    int64  `json:"submitted_at"`
}

// OTSPendingProof is the level-3 witness receipt produced by SubmitToOTS.
type OTSPendingProof struct {
	OriginalHash           string                `json:"original_hash"`
	Nonce                  string                `json:"nonce"`
	Digest                 string                `json:"digest"`
	Calendars              []CalendarSubmission  `json:"calendars"`
	SuccessfulSubmissions  int                   `json:"successful_submissions"`
	TotalCalendars         int                   `json:"total_calendars"`
	CreatedAt              int64                 `json:"created_at"`
}

// BitcoinAttestation is one calendar's confirmation that a digest was
// included in a Bitcoin block.
type BitcoinAttestation struct {
	Calendar      string        `json:"calendar"`
	ProofBytesHex string        `json:"proof_bytes_hex"`
	ConfirmedAt   int64         `json:"confirmed_at"`
	BlockHash     chainhash.Hash `json:"block_hash,omitempty"`
}

// OTSConfirmProof is the level-4 witness receipt produced once a calendar
// reports a Bitcoin attestation.
type OTSConfirmProof struct {
	OriginalHash        string                `json:"original_hash"`
	BitcoinAttestations []BitcoinAttestation  `json:"bitcoin_attestations"`
	ConfirmedAt         int64                 `json:"confirmed_at"`
}

// CalendarUpgradeOutcome is the per-calendar outcome of a check_ots_upgrade
// poll.
type CalendarUpgradeOutcome struct {
	Calendar string `json:"calendar"`
	Upgraded bool   `json:"upgraded"`
	Error    string `json:"error,omitempty"`
}

// OTSUpgradeResult is the structured result of CheckOTSUpgrade.
type OTSUpgradeResult struct {
	NoPending bool                     `json:"no_pending,omitempty"`
	Upgraded  bool                     `json:"upgraded"`
	NewLevel  WitnessLevel             `json:"new_level,omitempty"`
	Outcomes  []CalendarUpgradeOutcome `json:"outcomes,omitempty"`
}

// OTSClient implements the OpenTimestamps submission/upgrade protocol
// against a fixed set of calendar endpoints, fanning requests out
// concurrently with independent per-calendar failure.
type OTSClient struct {
	Calendars  []string
	HTTPClient *http.Client
	Witnesses  WitnessStore
	Metrics    *Metrics
	Logger     *Logger
}

// NewOTSClient creates an OTS client using cfg's calendar list and
// per-request timeout, persisting receipts into ws.
func NewOTSClient(ws WitnessStore, cfg Config) *OTSClient {
	return &OTSClient{
		Calendars:  append([]string(nil), cfg.Calendars...),
		HTTPClient: &http.Client{Timeout: cfg.CalendarTimeout()},
		Witnesses:  ws,
	}
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// SubmitToOTS validates hashHex (must be exactly 64 hex characters),
// generates a fresh 16-byte nonce, computes digest = SHA256(nonce ‖
// hash_bytes), and concurrently POSTs the raw digest to every configured
// calendar. A single failed calendar never aborts the others. The
// resulting ots_pending receipt is persisted under hashHex only if at
// least one calendar accepted the submission.
func (c *OTSClient) SubmitToOTS(ctx context.Context, hashHex string) (*OTSPendingProof, error) {
	if !isHex64(hashHex) {
		return nil, ErrInvalidHash
	}

	hashBytes, err := hex.DecodeString(hashHex)
	if err != nil {
		return nil, ErrInvalidHash
	}

	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("forge: generate OTS nonce: %w", err)
	}

	digest := sha256.Sum256(append(append([]byte{}, nonce[:]...), hashBytes...))

	now := nowMillis()
	submissions := c.fanOutSubmit(ctx, digest[:], now)

	successes := 0
	for _, s := range submissions {
		if s.Status == "submitted" {
			successes++
		}
	}

	level := LevelSelf
	if successes > 0 {
		level = LevelPublic
	}

	pending := &OTSPendingProof{
		OriginalHash:          hashHex,
		Nonce:                 hex.EncodeToString(nonce[:]),
		Digest:                hex.EncodeToString(digest[:]),
		Calendars:             submissions,
		SuccessfulSubmissions: successes,
		TotalCalendars:        len(c.Calendars),
		CreatedAt:             now,
	}

	if successes > 0 && c.Witnesses != nil {
		receipt := WitnessReceipt{Kind: ReceiptKindOTSPending, Level: level, OTSPending: pending}
		if err := c.Witnesses.SaveWitness(hashHex, receipt); err != nil {
			return pending, fmt.Errorf("forge: persist ots_pending receipt: %w", err)
		}
	}
	if c.Metrics != nil {
		c.Metrics.ObserveSubmission(successes, len(c.Calendars)-successes)
	}

	return pending, nil
}

// fanOutSubmit POSTs digest to every calendar concurrently and joins on
// an all-settled basis: every goroutine writes to its own result slot, so
// one slow or failing calendar never blocks or cancels the others.
func (c *OTSClient) fanOutSubmit(ctx context.Context, digest []byte, submittedAt int64) []CalendarSubmission {
	results := make([]CalendarSubmission, len(c.Calendars))
	var wg sync.WaitGroup
	for i, cal := range c.Calendars {
		wg.Add(1)
		go func(i int, cal string) {
			defer wg.Done()
			results[i] = c.submitOne(ctx, cal, digest, submittedAt)
		}(i, cal)
	}
	wg.Wait()
	for _, r := range results {
		if r.Status == "error" {
			c.Logger.Warnf("ots calendar %s rejected submission: %s", r.Calendar, r.Error)
		}
	}
	return results
}

func (c *OTSClient) submitOne(ctx context.Context, calendar string, digest []byte, submittedAt int64) CalendarSubmission {
	reqCtx, cancel := context.WithTimeout(ctx, otsRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, calendar+"/digest", bytes.NewReader(digest))
	if err != nil {
		return CalendarSubmission{Calendar: calendar, Status: "error", Error: err.Error(), SubmittedAt: submittedAt}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/vnd.opentimestamps.v1")
	req.Header.Set("User-Agent", otsUserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return CalendarSubmission{Calendar: calendar, Status: "error", Error: err.Error(), SubmittedAt: submittedAt}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CalendarSubmission{
			Calendar:    calendar,
			Status:      "error",
			Error:       fmt.Sprintf("calendar returned status %d", resp.StatusCode),
			SubmittedAt: submittedAt,
		}
	}

	return CalendarSubmission{
		Calendar:       calendar,
		Status:         "submitted",
		ResponseHex:    hex.EncodeToString(body),
		ResponseLength: len(body),
		SubmittedAt:    submittedAt,
	}
}

// CheckOTSUpgrade locates the most recent ots_pending receipt for root and
// polls every calendar it successfully submitted to for an upgrade. If no
// pending receipt exists it returns a structured NoPending result rather
// than an error. If any calendar's response contains the
// ATTESTATION_BITCOIN opcode, an ots_confirmed receipt (level 4) is
// constructed and persisted.
func (c *OTSClient) CheckOTSUpgrade(ctx context.Context, root string) (*OTSUpgradeResult, error) {
	pending, err := c.latestPending(root)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return &OTSUpgradeResult{NoPending: true}, nil
	}

	digestBytes, err := hex.DecodeString(pending.Digest)
	if err != nil {
		return nil, fmt.Errorf("forge: decode stored digest: %w", err)
	}

	var submittedCalendars []string
	for _, s := range pending.Calendars {
		if s.Status == "submitted" {
			submittedCalendars = append(submittedCalendars, s.Calendar)
		}
	}

	outcomes, attestations := c.fanOutUpgrade(ctx, submittedCalendars, digestBytes)

	upgraded := len(attestations) > 0
	result := &OTSUpgradeResult{Upgraded: upgraded, Outcomes: outcomes}

	if upgraded {
		now := nowMillis()
		confirm := &OTSConfirmProof{
			OriginalHash:        pending.OriginalHash,
			BitcoinAttestations: attestations,
			ConfirmedAt:         now,
		}
		result.NewLevel = LevelAnchored
		if c.Witnesses != nil {
			receipt := WitnessReceipt{Kind: ReceiptKindOTSConfirm, Level: LevelAnchored, OTSConfirm: confirm}
			if err := c.Witnesses.SaveWitness(root, receipt); err != nil {
				return result, fmt.Errorf("forge: persist ots_confirmed receipt: %w", err)
			}
		}
	}
	if c.Metrics != nil {
		c.Metrics.ObserveUpgradePoll(upgraded)
	}

	return result, nil
}

func (c *OTSClient) latestPending(root string) (*OTSPendingProof, error) {
	if c.Witnesses == nil {
		return nil, nil
	}
	receipts, err := c.Witnesses.LoadWitnesses(root)
	if err != nil {
		return nil, err
	}
	var latest *OTSPendingProof
	var latestAt int64 = -1
	for _, r := range receipts {
		if r.Kind == ReceiptKindOTSPending && r.OTSPending != nil && r.OTSPending.CreatedAt > latestAt {
			latest = r.OTSPending
			latestAt = r.OTSPending.CreatedAt
		}
	}
	return latest, nil
}

// upgradeSlot is one calendar's outcome from fanOutUpgrade.
type upgradeSlot struct {
	outcome     CalendarUpgradeOutcome
	attestation *BitcoinAttestation
}

func (c *OTSClient) fanOutUpgrade(ctx context.Context, calendars []string, digest []byte) ([]CalendarUpgradeOutcome, []BitcoinAttestation) {
	slots := make([]upgradeSlot, len(calendars))
	var wg sync.WaitGroup
	for i, cal := range calendars {
		wg.Add(1)
		go func(i int, cal string) {
			defer wg.Done()
			slots[i] = c.upgradeOne(ctx, cal, digest)
		}(i, cal)
	}
	wg.Wait()

	outcomes := make([]CalendarUpgradeOutcome, len(slots))
	var attestations []BitcoinAttestation
	for i, s := range slots {
		outcomes[i] = s.outcome
		if s.outcome.Error != "" {
			c.Logger.Warnf("ots calendar %s upgrade poll failed: %s", s.outcome.Calendar, s.outcome.Error)
		}
		if s.attestation != nil {
			attestations = append(attestations, *s.attestation)
		}
	}
	return outcomes, attestations
}

func (c *OTSClient) upgradeOne(ctx context.Context, calendar string, digest []byte) upgradeSlot {
	reqCtx, cancel := context.WithTimeout(ctx, otsRequestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/timestamp/%s", calendar, hex.EncodeToString(digest))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return upgradeSlot{outcome: CalendarUpgradeOutcome{Calendar: calendar, Error: err.Error()}}
	}
	req.Header.Set("Accept", "application/vnd.opentimestamps.v1")
	req.Header.Set("User-Agent", otsUserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return upgradeSlot{outcome: CalendarUpgradeOutcome{Calendar: calendar, Error: err.Error()}}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upgradeSlot{outcome: CalendarUpgradeOutcome{
			Calendar: calendar,
			Error:    fmt.Sprintf("calendar returned status %d", resp.StatusCode),
		}}
	}

	att := extractBitcoinAttestation(calendar, body)
	if att == nil {
		return upgradeSlot{outcome: CalendarUpgradeOutcome{Calendar: calendar, Upgraded: false}}
	}
	return upgradeSlot{
		outcome:     CalendarUpgradeOutcome{Calendar: calendar, Upgraded: true},
		attestation: att,
	}
}

// extractBitcoinAttestation scans body for the ATTESTATION_BITCOIN opcode
// byte and, if present, attempts to recover the little-endian 32-byte
// block hash that follows it in the OTS proof encoding. This is the
// byte-scan heuristic used in place of a full tag-stream parse: presence
// of the opcode is sufficient to report "upgraded", the block hash is
// best-effort display metadata only.
func extractBitcoinAttestation(calendar string, body []byte) *BitcoinAttestation {
	idx := bytes.IndexByte(body, otsOpAttestationBitcoin)
	if idx == -1 {
		return nil
	}
	att := &BitcoinAttestation{
		Calendar:      calendar,
		ProofBytesHex: hex.EncodeToString(body),
		ConfirmedAt:   nowMillis(),
	}
	if idx+1+chainhash.HashSize <= len(body) {
		raw := body[idx+1 : idx+1+chainhash.HashSize]
		reversed := make([]byte, chainhash.HashSize)
		for i, b := range raw {
			reversed[chainhash.HashSize-1-i] = b
		}
		if h, err := chainhash.NewHash(reversed); err == nil {
			att.BlockHash = *h
		}
	}
	return att
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
