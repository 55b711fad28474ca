package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
)

// builder parameter keys.
const (
	KeyRoadGeometryID                    = "road_geometry_id"
	KeyGpkgFile                          = "gpkg_file"
	KeyLinearTolerance                   = "linear_tolerance"
	KeyAngularTolerance                  = "angular_tolerance"
	KeyScaleLength                       = "scale_length"
	KeyInertialToBackendFrameTranslation = "inertial_to_backend_frame_translation"
	KeyRoadRuleBook                      = "road_rule_book"
	KeyRuleRegistry                      = "rule_registry"
	KeyTrafficLightBook                  = "traffic_light_book"
	KeyPhaseRingBook                     = "phase_ring_book"
	KeyIntersectionBook                  = "intersection_book"
)

const (
	DefaultRoadGeometryID   = "maliput_sparse"
	DefaultLinearTolerance  = 1e-3
	DefaultAngularTolerance = 1e-3
	DefaultScaleLength      = 1.0
)

type BuilderConfiguration struct {
	GpkgFile         string  `validate:"required"`
	RoadGeometryID   string  `validate:"required"`
	LinearTolerance  float64 `validate:"gt=0"`
	AngularTolerance float64 `validate:"gt=0"`
	ScaleLength      float64 `validate:"gt=0"`

	InertialToBackendFrameTranslation datastructure.Point

	RoadRuleBook     *string
	RuleRegistry     *string
	TrafficLightBook *string
	PhaseRingBook    *string
	IntersectionBook *string

	linearToleranceSet  bool
	angularToleranceSet bool
}

func Default() BuilderConfiguration {
	return BuilderConfiguration{
		RoadGeometryID:   DefaultRoadGeometryID,
		LinearTolerance:  DefaultLinearTolerance,
		AngularTolerance: DefaultAngularTolerance,
		ScaleLength:      DefaultScaleLength,
	}
}

// FromMap builds a configuration from builder parameters. Missing keys keep their defaults,
// unknown keys are ignored.
func FromMap(m map[string]string) (BuilderConfiguration, error) {
	cfg := Default()

	if v, ok := m[KeyGpkgFile]; ok {
		cfg.GpkgFile = v
	}
	if v, ok := m[KeyRoadGeometryID]; ok {
		cfg.RoadGeometryID = v
	}

	floats := []struct {
		key string
		dst *float64
		set *bool
	}{
		{KeyLinearTolerance, &cfg.LinearTolerance, &cfg.linearToleranceSet},
		{KeyAngularTolerance, &cfg.AngularTolerance, &cfg.angularToleranceSet},
		{KeyScaleLength, &cfg.ScaleLength, nil},
	}
	for _, f := range floats {
		v, ok := m[f.key]
		if !ok {
			continue
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q: %w", f.key, v, err)
		}
		*f.dst = parsed
		if f.set != nil {
			*f.set = true
		}
	}

	if v, ok := m[KeyInertialToBackendFrameTranslation]; ok {
		p, err := ParseVector3(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", KeyInertialToBackendFrameTranslation, err)
		}
		cfg.InertialToBackendFrameTranslation = p
	}

	optional := []struct {
		key string
		dst **string
	}{
		{KeyRoadRuleBook, &cfg.RoadRuleBook},
		{KeyRuleRegistry, &cfg.RuleRegistry},
		{KeyTrafficLightBook, &cfg.TrafficLightBook},
		{KeyPhaseRingBook, &cfg.PhaseRingBook},
		{KeyIntersectionBook, &cfg.IntersectionBook},
	}
	for _, o := range optional {
		if v, ok := m[o.key]; ok {
			s := v
			*o.dst = &s
		}
	}
	return cfg, nil
}

// ParseVector3 parses "{x, y, z}". The braces are optional.
func ParseVector3(s string) (datastructure.Point, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "{")
	trimmed = strings.TrimSuffix(trimmed, "}")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 3 {
		return datastructure.Point{}, fmt.Errorf("expected 3 components in %q", s)
	}
	var xyz [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return datastructure.Point{}, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		xyz[i] = v
	}
	return datastructure.NewPoint(xyz[0], xyz[1], xyz[2]), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ToMap is the inverse of FromMap. Unset optional books are left out.
func (c BuilderConfiguration) ToMap() map[string]string {
	t := c.InertialToBackendFrameTranslation
	m := map[string]string{
		KeyGpkgFile:         c.GpkgFile,
		KeyRoadGeometryID:   c.RoadGeometryID,
		KeyLinearTolerance:  formatFloat(c.LinearTolerance),
		KeyAngularTolerance: formatFloat(c.AngularTolerance),
		KeyScaleLength:      formatFloat(c.ScaleLength),
		KeyInertialToBackendFrameTranslation: fmt.Sprintf("{%s, %s, %s}",
			formatFloat(t.X), formatFloat(t.Y), formatFloat(t.Z)),
	}
	optional := map[string]*string{
		KeyRoadRuleBook:     c.RoadRuleBook,
		KeyRuleRegistry:     c.RuleRegistry,
		KeyTrafficLightBook: c.TrafficLightBook,
		KeyPhaseRingBook:    c.PhaseRingBook,
		KeyIntersectionBook: c.IntersectionBook,
	}
	for k, v := range optional {
		if v != nil {
			m[k] = *v
		}
	}
	return m
}

// ApplyMetadata takes the tolerances stored in the GeoPackage metadata table unless the caller
// configured them explicitly. Malformed metadata tolerances are an error either way.
func (c *BuilderConfiguration) ApplyMetadata(meta map[string]string) error {
	tolerances := []struct {
		key string
		dst *float64
		set bool
	}{
		{KeyLinearTolerance, &c.LinearTolerance, c.linearToleranceSet},
		{KeyAngularTolerance, &c.AngularTolerance, c.angularToleranceSet},
	}

	parsed := make([]*float64, len(tolerances))
	for i, tol := range tolerances {
		v, ok := meta[tol.key]
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid metadata %s %q: %w", tol.key, v, err)
		}
		parsed[i] = &f
	}

	for i, tol := range tolerances {
		if parsed[i] != nil && !tol.set {
			*tol.dst = *parsed[i]
		}
	}
	return nil
}

// ValidationError carries one translated message per failed field.
type ValidationError struct {
	Messages []string
	Err      error
}

func (e *ValidationError) Error() string {
	return "invalid builder configuration: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var (
	validate = validator.New()
	trans    ut.Translator
)

func init() {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ = uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(fmt.Sprintf("register validator translations: %v", err))
	}
}

func (c BuilderConfiguration) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}
	msgs := make([]string, 0, len(vErrs))
	for _, e := range vErrs {
		msgs = append(msgs, e.Translate(trans))
	}
	return &ValidationError{Messages: msgs, Err: err}
}

var flagUsage = map[string]string{
	KeyGpkgFile:                          "geopackage file with the road network",
	KeyRoadGeometryID:                    "id of the road geometry",
	KeyLinearTolerance:                   "linear tolerance in metres, defaults to the file's metadata",
	KeyAngularTolerance:                  "angular tolerance in radians, defaults to the file's metadata",
	KeyScaleLength:                       "scale length in metres",
	KeyInertialToBackendFrameTranslation: "translation from the inertial to the backend frame, as {x, y, z}",
	KeyRoadRuleBook:                      "road rule book yaml file",
	KeyRuleRegistry:                      "rule registry yaml file",
	KeyTrafficLightBook:                  "traffic light book yaml file",
	KeyPhaseRingBook:                     "phase ring book yaml file",
	KeyIntersectionBook:                  "intersection book yaml file",
}

// RegisterFlags adds one string flag per builder key to fs.
func RegisterFlags(fs *flag.FlagSet) {
	defaults := Default().ToMap()
	for key, usage := range flagUsage {
		fs.String(key, defaults[key], usage)
	}
}

// FromFlagSet builds a configuration from the flags of fs that were set on the command line.
func FromFlagSet(fs *flag.FlagSet) (BuilderConfiguration, error) {
	m := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		if _, ok := flagUsage[f.Name]; ok {
			m[f.Name] = f.Value.String()
		}
	})
	return FromMap(m)
}
