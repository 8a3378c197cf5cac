package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/homee/internal/config"
	"github.com/oshokin/homee/internal/domain/home"
)

// JSON field names of the state file.
const (
	fieldLightEnabled = "light_enabled"
	fieldLastBadgeUID = "last_badge_uid"
	fieldUpdatedAt    = "updated_at"
)

// Repository defines persistence operations for the control state.
type Repository interface {
	Load(ctx context.Context) (*home.ControlState, error)
	Save(ctx context.Context, state *home.ControlState) error
}

// FileRepository persists the control state to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")
	// errBadField is returned when a field has an unexpected JSON type.
	errBadField = errors.New("unexpected field type")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the state from disk.
func (r *FileRepository) Load(_ context.Context) (*home.ControlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var protoState structpb.Struct
	if err = protojson.Unmarshal(contents, &protoState); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromProto(&protoState)
}

// Save writes the state to disk using JSON representation.
// The file is replaced atomically.
func (r *FileRepository) Save(_ context.Context, state *home.ControlState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(toProto(state))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// fromProto converts the stored struct into the domain model.
// Missing fields keep their defaults.
func fromProto(s *structpb.Struct) (*home.ControlState, error) {
	state := home.DefaultControlState()
	fields := s.GetFields()

	if v, found := fields[fieldLightEnabled]; found {
		b, ok := v.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errBadField, fieldLightEnabled)
		}

		state.LightEnabled = b.BoolValue
	}

	if v, found := fields[fieldLastBadgeUID]; found {
		state.LastBadgeUID = v.GetStringValue()
	}

	if v, found := fields[fieldUpdatedAt]; found && v.GetStringValue() != "" {
		ts, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", fieldUpdatedAt, err)
		}

		state.UpdatedAt = ts
	}

	return &state, nil
}

// toProto converts the domain model into a struct.
func toProto(state *home.ControlState) *structpb.Struct {
	var updatedAt string
	if !state.UpdatedAt.IsZero() {
		updatedAt = state.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldLightEnabled: structpb.NewBoolValue(state.LightEnabled),
			fieldLastBadgeUID: structpb.NewStringValue(state.LastBadgeUID),
			fieldUpdatedAt:    structpb.NewStringValue(updatedAt),
		},
	}
}
