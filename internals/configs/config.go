package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	JWTSecret string
	AppEnv    string
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ Tidak menemukan .env file, menggunakan ENV dari sistem")
		} else {
			log.Println("✅ .env file berhasil dimuat!")
		}
	} else {
		log.Println("🚀 Running in Railway, menggunakan ENV dari sistem")
	}

	JWTSecret = GetEnv("JWT_SECRET")
	AppEnv = GetEnv("APP_ENV", "development")

	if JWTSecret == "" {
		log.Println("❌ JWT_SECRET belum diset!")
	} else {
		log.Println("✅ JWT_SECRET berhasil dimuat.")
	}
	if GetEnv("COLLAB_BASE_URL") == "" {
		log.Println("❌ COLLAB_BASE_URL belum diset!")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if (!exists || strings.TrimSpace(value) == "") && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func GetEnvInt(key string, def int) int {
	v := strings.TrimSpace(GetEnv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ %s=%q bukan angka, pakai default %d", key, v, def)
		return def
	}
	return n
}

func GetEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(GetEnv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️ %s=%q bukan durasi, pakai default %s", key, v, def)
		return def
	}
	return d
}

func GetEnvList(key string, def ...string) []string {
	v := strings.TrimSpace(GetEnv(key))
	if v == "" {
		return def
	}
	out := make([]string, 0)
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =======================
// COLLECTION ENGINE
// =======================

type CollectionConfig struct {
	CollabBaseURL string
	CollabToken   string
	CollabTimeout time.Duration
	// flow -> path, only overrides; {ref} is replaced by the reference id
	FlowPaths map[string]string

	BreakerFailures    int
	BreakerOpenTimeout time.Duration

	ChequeTrailingDays      int
	RejectFutureChequeFlows []string

	SessionTTL          time.Duration
	SweepSchedule       string
	VoucherValidityDays int

	RequestTimeout time.Duration
}

var flowPathEnv = map[string]string{
	"customer_payment":   "COLLAB_PATH_CUSTOMER_PAYMENT",
	"order_payment":      "COLLAB_PATH_ORDER_PAYMENT",
	"customer_refund":    "COLLAB_PATH_CUSTOMER_REFUND",
	"advance_collection": "COLLAB_PATH_ADVANCE_COLLECTION",
}

func LoadCollectionConfig() CollectionConfig {
	paths := map[string]string{}
	for flow, key := range flowPathEnv {
		if p := strings.TrimSpace(GetEnv(key)); p != "" {
			paths[flow] = p
		}
	}

	return CollectionConfig{
		CollabBaseURL:           strings.TrimSpace(GetEnv("COLLAB_BASE_URL")),
		CollabToken:             strings.TrimSpace(GetEnv("COLLAB_TOKEN")),
		CollabTimeout:           GetEnvDuration("COLLAB_TIMEOUT", 15*time.Second),
		FlowPaths:               paths,
		BreakerFailures:         GetEnvInt("COLLAB_BREAKER_FAILURES", 5),
		BreakerOpenTimeout:      GetEnvDuration("COLLAB_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		ChequeTrailingDays:      GetEnvInt("CHEQUE_TRAILING_DAYS", 90),
		RejectFutureChequeFlows: GetEnvList("CHEQUE_REJECT_FUTURE_FLOWS", "order_payment"),
		SessionTTL:              GetEnvDuration("COLLECTION_SESSION_TTL", 30*time.Minute),
		SweepSchedule:           GetEnv("COLLECTION_SWEEP_SCHEDULE", "@every 1m"),
		VoucherValidityDays:     GetEnvInt("GIFT_VOUCHER_VALIDITY_DAYS", 365),
		RequestTimeout:          GetEnvDuration("HTTP_REQUEST_TIMEOUT", 20*time.Second),
	}
}

func (c CollectionConfig) Validate() error {
	if c.CollabBaseURL == "" {
		return fmt.Errorf("COLLAB_BASE_URL wajib diisi")
	}
	for flow := range c.FlowPaths {
		if _, ok := flowPathEnv[flow]; !ok {
			return fmt.Errorf("flow %q tidak dikenal", flow)
		}
	}
	for _, flow := range c.RejectFutureChequeFlows {
		if _, ok := flowPathEnv[flow]; !ok {
			return fmt.Errorf("CHEQUE_REJECT_FUTURE_FLOWS: flow %q tidak dikenal", flow)
		}
	}
	if c.ChequeTrailingDays <= 0 {
		return fmt.Errorf("CHEQUE_TRAILING_DAYS harus > 0")
	}
	return nil
}
