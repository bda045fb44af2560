// Package redis backs simulated S3 buckets, SNS topics and SQS queues with a
// Redis server, so side effects of executions can be inspected from outside
// the simulator.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BDNK1/sfnsim/runtime/plugin"
	backend "github.com/redis/go-redis/v9"
)

const Service = "redis"

// Config is the resources.redis section of the CLI config file.
type Config struct {
	Addr     string        `yaml:"addr" default:"localhost:6379" validate:"required,hostname_port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" default:"0" validate:"gte=0,lte=15"`
	Prefix   string        `yaml:"prefix" default:"sfnsim:"`
	TTL      time.Duration `yaml:"ttl" default:"0s" validate:"gte=0"`
}

// Connection is a catalog entry owning one Redis client. Registering it lets
// the catalog ping the server at startup and close the client on shutdown.
// Buckets and queues obtained from it share the client.
type Connection struct {
	name   string
	client *backend.Client
	prefix string
	ttl    time.Duration
	owned  bool
}

var (
	_ plugin.Resource    = (*Connection)(nil)
	_ plugin.Initializer = (*Connection)(nil)
	_ plugin.Shutdowner  = (*Connection)(nil)
)

type Option func(*Connection)

// WithPrefix sets the prefix of every key the connection writes.
func WithPrefix(prefix string) Option {
	return func(c *Connection) {
		c.prefix = prefix
	}
}

// WithTTL expires stored objects after ttl. Zero keeps them.
func WithTTL(ttl time.Duration) Option {
	return func(c *Connection) {
		c.ttl = ttl
	}
}

// New creates a connection from config. The client connects lazily; call
// Initialize, or register the connection, to fail fast on a bad address.
func New(name string, config Config, opts ...Option) *Connection {
	client := backend.NewClient(&backend.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	c := &Connection{
		name:   name,
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
		owned:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromClient wraps an existing client. Shutdown leaves it open.
func NewFromClient(name string, client *backend.Client, opts ...Option) *Connection {
	c := &Connection{
		name:   name,
		client: client,
		prefix: "sfnsim:",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connection) Service() string      { return Service }
func (c *Connection) ResourceName() string { return c.name }

func (c *Connection) Initialize(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: ping failed: %w", c.name, err)
	}
	return nil
}

func (c *Connection) Shutdown(context.Context) error {
	if !c.owned {
		return nil
	}
	return c.client.Close()
}

// Objects returns the object store of bucket.
func (c *Connection) Objects(bucket string) *ObjectStore {
	return &ObjectStore{conn: c, prefix: c.prefix + "s3:" + bucket + ":"}
}

// Messages returns the list receiving the messages of a topic or queue.
// service is plugin.ServiceSNS or plugin.ServiceSQS.
func (c *Connection) Messages(service, name string) *MessageList {
	return &MessageList{conn: c, key: c.prefix + service + ":" + name}
}

// ObjectStore keeps the objects of one bucket as plain string keys.
type ObjectStore struct {
	conn   *Connection
	prefix string
}

var _ plugin.ObjectStore = (*ObjectStore)(nil)

func (s *ObjectStore) key(objectKey string) string {
	return s.prefix + objectKey
}

func (s *ObjectStore) GetObject(ctx context.Context, key string) (string, bool, error) {
	body, err := s.conn.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, backend.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return body, true, nil
}

func (s *ObjectStore) PutObject(ctx context.Context, key, body string) error {
	if err := s.conn.client.Set(ctx, s.key(key), body, s.conn.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	return nil
}

// MessageList appends messages to a Redis list, oldest first.
type MessageList struct {
	conn *Connection
	key  string
}

var _ plugin.MessageSink = (*MessageList)(nil)

func (l *MessageList) Send(ctx context.Context, message string) error {
	if err := l.conn.client.RPush(ctx, l.key, message).Err(); err != nil {
		return fmt.Errorf("failed to append message to %s: %w", l.key, err)
	}
	return nil
}

// Messages returns every message received so far.
func (l *MessageList) Messages(ctx context.Context) ([]string, error) {
	messages, err := l.conn.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.key, err)
	}
	return messages, nil
}
