package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/revstore/internal/backend"
	"github.com/roach88/revstore/internal/binary"
	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/refint"
	"github.com/roach88/revstore/internal/resource"
)

// ErrIntegrity is returned when stored payload bytes do not match the
// revision's data hash.
var ErrIntegrity = errors.New("payload integrity hash mismatch")

// normalize converts the accepted input shapes into T: a T, a *T, a
// map[string]any or JSON bytes.
func (r *ResourceManager[T]) normalize(payload any) (T, error) {
	var out T
	switch p := payload.(type) {
	case T:
		return p, nil
	case *T:
		if p == nil {
			return out, resource.Validation(r.m.name, errors.New("payload is nil"))
		}
		return *p, nil
	case []byte:
		if _, isDoc := any(out).(map[string]any); isDoc {
			// Schemaless models keep plain int64 and float64 numbers.
			v, err := ir.UnmarshalIRValue(p)
			if err != nil {
				return out, resource.Validation(r.m.name, fmt.Errorf("decode JSON payload: %w", err))
			}
			doc, ok := ir.ToGo(v).(map[string]any)
			if !ok {
				return out, resource.Validation(r.m.name, fmt.Errorf("payload is %s, not an object", ir.TypeName(v)))
			}
			return any(doc).(T), nil
		}
		if err := codec.JSON.Unmarshal(p, &out); err != nil {
			return out, resource.Validation(r.m.name, fmt.Errorf("decode JSON payload: %w", err))
		}
		return out, nil
	case string:
		return r.normalize([]byte(p))
	case map[string]any:
		data, err := codec.JSON.Marshal(p)
		if err != nil {
			return out, resource.Validation(r.m.name, fmt.Errorf("encode payload map: %w", err))
		}
		return r.normalize(data)
	default:
		return out, resource.Validation(r.m.name, fmt.Errorf("unsupported payload type %T", payload))
	}
}

// prepared is a payload ready to be stored.
type prepared[T any] struct {
	payload T
	data    []byte
	hash    string
	indexed ir.IRObject
}

// prepare offloads binaries, encodes, validates and projects payload.
// References with cascade or set_null policies must point at live
// resources when checkRefs is set.
func (r *ResourceManager[T]) prepare(ctx context.Context, payload T, checkRefs bool) (*prepared[T], error) {
	if r.m.binaries {
		// payload may share slices, maps and pointers with the caller.
		if err := binary.Detach(&payload); err != nil {
			return nil, fmt.Errorf("detach binaries: %w", err)
		}
		n, err := binary.Offload(ctx, r.e.backend.BlobStore(), &payload)
		if err != nil {
			if errors.Is(err, binary.ErrUnknownBlob) {
				return nil, resource.Validation(r.m.name, err)
			}
			return nil, fmt.Errorf("offload binaries: %w", err)
		}
		r.e.metrics.RecordBlobs(n)
	}

	data, err := r.m.codec.Marshal(payload)
	if err != nil {
		return nil, resource.Validation(r.m.name, fmt.Errorf("encode payload: %w", err))
	}
	if err := r.validate(data); err != nil {
		return nil, err
	}

	indexed, err := r.project(payload)
	if err != nil {
		return nil, err
	}
	if checkRefs {
		if err := r.checkReferences(ctx, indexed); err != nil {
			return nil, err
		}
	}

	return &prepared[T]{
		payload: payload,
		data:    data,
		hash:    ir.PayloadHash(data),
		indexed: indexed,
	}, nil
}

func (r *ResourceManager[T]) validate(data []byte) error {
	if r.m.validator == nil {
		return nil
	}
	doc, err := codec.Document(r.m.codec, data)
	if err != nil {
		return resource.Validation(r.m.name, err)
	}
	if err := r.m.validator.Validate(doc); err != nil {
		return resource.Validation(r.m.name, err)
	}
	return nil
}

// project builds indexed data from the JSON form of payload. Absent paths
// are left out; time fields are rewritten to ir.Time.
func (r *ResourceManager[T]) project(payload T) (ir.IRObject, error) {
	indexed := ir.IRObject{}
	if len(r.m.indexed) == 0 {
		return indexed, nil
	}

	v, err := codec.ToIR(payload)
	if err != nil {
		return nil, resource.Validation(r.m.name, err)
	}
	doc, ok := v.(ir.IRObject)
	if !ok {
		return nil, resource.Validation(r.m.name, fmt.Errorf("payload encodes as %s, not an object", ir.TypeName(v)))
	}

	for _, f := range r.m.indexed {
		val, found := lookupPath(doc, f.Path)
		if !found {
			continue
		}
		val, err := coerce(val, f.Type)
		if err != nil {
			return nil, resource.Validation(r.m.name, fmt.Errorf("indexed field %s: %w", f.Path, err))
		}
		indexed[f.Path] = val
	}
	return indexed, nil
}

func lookupPath(doc ir.IRObject, path string) (ir.IRValue, bool) {
	segments := strings.Split(path, ".")
	cur := doc
	for i, seg := range segments {
		v, ok := cur[seg]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		if cur, ok = v.(ir.IRObject); !ok {
			return nil, false
		}
	}
	return nil, false
}

// coerce checks v against the declared type. Null is accepted for every
// type.
func coerce(v ir.IRValue, t resource.FieldType) (ir.IRValue, error) {
	if _, isNull := v.(ir.IRNull); isNull {
		return v, nil
	}
	ok := true
	switch t {
	case resource.TypeString:
		_, ok = v.(ir.IRString)
	case resource.TypeInt:
		_, ok = v.(ir.IRInt)
	case resource.TypeFloat:
		_, ok = ir.Number(v)
	case resource.TypeBool:
		_, ok = v.(ir.IRBool)
	case resource.TypeList:
		_, ok = v.(ir.IRArray)
	case resource.TypeMap:
		_, ok = v.(ir.IRObject)
	case resource.TypeTime:
		s, isString := v.(ir.IRString)
		if !isString {
			ok = false
			break
		}
		tm, err := time.Parse(time.RFC3339Nano, string(s))
		if err != nil {
			return nil, fmt.Errorf("parse time: %w", err)
		}
		return ir.Time(tm.UTC()), nil
	}
	if !ok {
		return nil, fmt.Errorf("want %s, got %s", t, ir.TypeName(v))
	}
	return v, nil
}

// checkReferences rejects cascade and set_null references to resources
// that do not exist or are deleted.
func (r *ResourceManager[T]) checkReferences(ctx context.Context, indexed ir.IRObject) error {
	for _, rel := range r.e.registry.Outgoing(r.m.name) {
		if rel.Kind != resource.RefResource || rel.OnDelete == resource.Dangling {
			continue
		}
		ids := refint.RefIDs(indexed[rel.SourceField])
		if len(ids) == 0 {
			continue
		}
		target, err := r.e.lookup(rel.TargetType)
		if err != nil {
			return err
		}
		for _, id := range ids {
			meta, err := target.info().metas.Get(ctx, id)
			if errors.Is(err, backend.ErrNotFound) {
				return resource.Validation(r.m.name, fmt.Errorf("field %s: %s %q does not exist", rel.SourceField, rel.TargetType, id))
			}
			if err != nil {
				return fmt.Errorf("check reference %s: %w", rel.SourceField, err)
			}
			if meta.IsDeleted {
				return resource.Validation(r.m.name, fmt.Errorf("field %s: %s %q is deleted", rel.SourceField, rel.TargetType, id))
			}
		}
	}
	return nil
}

// decode migrates rev to the target schema version if needed and decodes
// it into T. Migrated data is validated before the typed decode.
func (r *ResourceManager[T]) decode(rev resource.Revision) (T, error) {
	var out T
	if rev.Info.DataHash != "" && ir.PayloadHash(rev.Data) != rev.Info.DataHash {
		return out, fmt.Errorf("%s revision %s/%s: %w", r.m.name, rev.Info.ResourceID, rev.Info.RevisionID, ErrIntegrity)
	}

	data := rev.Data
	if s := r.m.schema; s != nil && s.NeedsMigration(rev.Info.SchemaVersion) {
		migrated, err := s.Migrate(r.m.codec, rev.Info.SchemaVersion, data)
		if err != nil {
			if resource.IsMigrationPath(err) {
				return out, err
			}
			return out, fmt.Errorf("%s revision %s/%s: %w", r.m.name, rev.Info.ResourceID, rev.Info.RevisionID, err)
		}
		if err := r.validate(migrated); err != nil {
			return out, err
		}
		data = migrated
	}

	if err := r.m.codec.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s revision %s/%s: %w", r.m.name, rev.Info.ResourceID, rev.Info.RevisionID, err)
	}
	return out, nil
}
