package store

import (
    "context"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"

    "github.com/local/pdfdeck/internal/content"
)

// ExtractionCache stores extraction results keyed by the SHA-256 of the
// input document. Placeholder results are never cached.
type ExtractionCache struct {
    client *redis.Client
    ttl    time.Duration
}

func NewExtractionCache(client *redis.Client, ttl time.Duration) *ExtractionCache {
    if ttl <= 0 { ttl = 24 * time.Hour }
    return &ExtractionCache{client: client, ttl: ttl}
}

// CacheKey returns the Redis key for a document.
func CacheKey(data []byte) string {
    sum := sha256.Sum256(data)
    return fmt.Sprintf("extract:%s", hex.EncodeToString(sum[:]))
}

func (c *ExtractionCache) Get(ctx context.Context, data []byte) (*content.ExtractedContent, bool, error) {
    raw, err := c.client.Get(ctx, CacheKey(data)).Bytes()
    if errors.Is(err, redis.Nil) { return nil, false, nil }
    if err != nil { return nil, false, err }
    ec, err := decodeContent(raw)
    if err != nil {
        log.Warn().Err(err).Msg("dropping unreadable cache entry")
        _ = c.client.Del(ctx, CacheKey(data)).Err()
        return nil, false, nil
    }
    return ec, true, nil
}

func (c *ExtractionCache) Put(ctx context.Context, data []byte, ec *content.ExtractedContent) error {
    if ec == nil || ec.Source == content.StagePlaceholder { return nil }
    b, err := json.Marshal(ec)
    if err != nil { return err }
    return c.client.Set(ctx, CacheKey(data), b, c.ttl).Err()
}

func decodeContent(raw []byte) (*content.ExtractedContent, error) {
    var ec content.ExtractedContent
    if err := json.Unmarshal(raw, &ec); err != nil { return nil, err }
    if ec.Source == "" { return nil, fmt.Errorf("cache entry without source stage") }
    if ec.NumPages < 1 { ec.NumPages = 1 }
    if ec.PageBreaks == nil { ec.PageBreaks = []int{} }
    if ec.Paragraphs == nil { ec.Paragraphs = content.BuildParagraphs(ec.Text) }
    if ec.Tables == nil { ec.Tables = []content.Table{} }
    if ec.Images == nil { ec.Images = []content.ImageRef{} }
    return &ec, nil
}
