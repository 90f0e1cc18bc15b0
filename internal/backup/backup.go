// Package backup takes periodic encrypted snapshots of the ledger and
// ships them to S3-compatible storage. The ledger is the only durable
// record of who paid for what, so snapshots run even when every other
// ambient concern is switched off.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
)

// s3Client is the slice of the S3 API the manager uses, kept narrow for
// testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
	Interval   time.Duration
}

type Manager struct {
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}
	if m.Enabled() {
		m.client = newS3Client(cfg)
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether snapshots are configured. Missing credentials
// disable the loop rather than failing startup.
func (m *Manager) Enabled() bool {
	return m.cfg.Bucket != "" && m.cfg.AccessKey != "" && m.cfg.SecretKey != "" && m.cfg.Passphrase != ""
}

// Start begins the periodic snapshot loop.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("ledger snapshots disabled: storage not configured")
		return
	}

	interval := m.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Run(ctx); err != nil {
					m.logger.Error("ledger snapshot failed", "error", err)
				}
			}
		}
	}()
}

// Stop waits for the loop and any in-flight snapshot to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// LastRun returns the time of the last successful snapshot and the
// error from the most recent attempt, if any.
func (m *Manager) LastRun() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun, m.lastErr
}

// Run takes one snapshot now: vacuum a consistent copy, encrypt it, and
// upload it. The upload retries with Fibonacci backoff since object
// stores throw transient errors routinely.
func (m *Manager) Run(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("snapshot storage not configured")
	}

	err := m.run(ctx)

	m.mu.Lock()
	m.lastErr = err
	if err == nil {
		m.lastRun = time.Now().UTC()
	}
	m.mu.Unlock()

	return err
}

func (m *Manager) run(ctx context.Context) error {
	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("terakoya-snapshot-%d.db", time.Now().UnixNano()))
	defer os.Remove(snapshot)

	// VACUUM INTO writes a consistent single-file copy without blocking
	// writers, WAL included.
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return fmt.Errorf("vacuum ledger: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := Encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := fmt.Sprintf("ledger/%s.db.enc", time.Now().UTC().Format("2006-01-02T150405Z"))

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(sealed),
			ContentLength: aws.Int64(int64(len(sealed))),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.Info("ledger snapshot uploaded", "key", key, "bytes", len(sealed))
	return nil
}
