package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"quest-server/internal/models"
)

// compressThreshold размер JSON, начиная с которого запись сжимается zstd.
const compressThreshold = 4 << 10

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

//go:embed schema/session_record.schema.json
var sessionRecordSchema string

// Codec сериализует SessionRecord: JSON, zstd для крупных записей, проверка JSON-схемой при чтении.
type Codec struct {
	schema *jsonschema.Schema
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// NewCodec компилирует встроенную схему и готовит zstd encoder/decoder.
func NewCodec() (*Codec, error) {
	compiler := jsonschema.NewCompiler()
	const url = "session_record.schema.json"
	if err := compiler.AddResource(url, strings.NewReader(sessionRecordSchema)); err != nil {
		return nil, fmt.Errorf("add session record schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile session record schema: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{schema: schema, enc: enc, dec: dec}, nil
}

// MustCodec как NewCodec, но паникует при ошибке. Схема встроена в бинарник, поэтому ошибка здесь означает баг сборки.
func MustCodec() *Codec {
	c, err := NewCodec()
	if err != nil {
		panic(err)
	}
	return c
}

// Encode сериализует запись.
func (c *Codec) Encode(rec *models.SessionRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", models.ErrBadRequest)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal session record: %w", err)
	}
	if len(raw) < compressThreshold {
		return raw, nil
	}
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode восстанавливает запись. Любая ошибка формата оборачивает models.ErrCorruptRecord.
func (c *Codec) Decode(payload []byte) (*models.SessionRecord, error) {
	raw := payload
	if bytes.HasPrefix(payload, zstdMagic) {
		var err error
		raw, err = c.dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", models.ErrCorruptRecord, err)
		}
	}

	var doc any
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	if err := d.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: json: %v", models.ErrCorruptRecord, err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: schema: %v", models.ErrCorruptRecord, err)
	}

	var rec models.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", models.ErrCorruptRecord, err)
	}
	return &rec, nil
}
