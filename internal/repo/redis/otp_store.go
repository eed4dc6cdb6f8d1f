package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/interview-board/internal/domain"
	"github.com/diagnosis/interview-board/internal/repo"
	goredis "github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix = "otp:"
	otpKeyGrace  = domain.OtpRetention
)

// consumeScript deletes the whole hash only when the field exists.
var consumeScript = goredis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if v then
  redis.call('DEL', KEYS[1])
end
return v
`)

type storedOtp struct {
	Code      string            `json:"code"`
	ExpiresAt time.Time         `json:"expiresAt"`
	CreatedAt time.Time         `json:"createdAt"`
	Payload   domain.OtpPayload `json:"payload"`
}

// OtpStore keeps one hash per email, one field per intent and code.
type OtpStore struct {
	client *goredis.Client
	now    func() time.Time
}

func NewOtpStore(client *goredis.Client) *OtpStore {
	return &OtpStore{client: client, now: time.Now}
}

func otpKey(email string) string { return otpKeyPrefix + email }

func otpField(intent domain.OtpIntent, code string) string {
	return string(intent) + ":" + code
}

func (s *OtpStore) Create(ctx context.Context, rec *domain.OtpRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	body, err := json.Marshal(storedOtp{
		Code:      rec.Code,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: createdAt,
		Payload:   rec.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}

	key := otpKey(rec.Email)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, otpField(rec.Payload.Intent, rec.Code), body)
	pipe.ExpireAt(ctx, key, rec.ExpiresAt.Add(otpKeyGrace))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

func (s *OtpStore) Consume(ctx context.Context, email, code string, intent domain.OtpIntent) (*domain.OtpRecord, error) {
	raw, err := consumeScript.Run(ctx, s.client, []string{otpKey(email)}, otpField(intent, code)).Text()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	return decodeOtp(email, raw)
}

func decodeOtp(email, raw string) (*domain.OtpRecord, error) {
	var st storedOtp
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode otp: %w", err)
	}
	return &domain.OtpRecord{
		Email:     email,
		Code:      st.Code,
		ExpiresAt: st.ExpiresAt,
		CreatedAt: st.CreatedAt,
		Payload:   st.Payload,
	}, nil
}

func (s *OtpStore) DeleteByEmail(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, otpKey(email)).Err(); err != nil {
		return fmt.Errorf("delete otp records: %w", err)
	}
	return nil
}

// DeleteExpired walks every ledger hash and drops fields that expired before the cutoff.
func (s *OtpStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, otpKeyPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan otp keys: %w", err)
		}
		for _, key := range keys {
			n, err := s.sweepKey(ctx, key, before)
			if err != nil {
				return removed, err
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

func (s *OtpStore) sweepKey(ctx context.Context, key string, before time.Time) (int64, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("read otp hash: %w", err)
	}
	var stale []string
	for field, raw := range fields {
		rec, err := decodeOtp(strings.TrimPrefix(key, otpKeyPrefix), raw)
		if err != nil || rec.ExpiresAt.Before(before) {
			stale = append(stale, field)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	n, err := s.client.HDel(ctx, key, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete expired otp fields: %w", err)
	}
	return n, nil
}

var _ repo.OtpLedger = (*OtpStore)(nil)
