package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/RMahshie/sedconv/internal/convolve"
	"github.com/RMahshie/sedconv/pkg/models"
)

// PipelineConfig describes one pipeline run: which filters to build, which
// model families to convolve and which stages to execute.
type PipelineConfig struct {
	FilterDir        string              `mapstructure:"filter_dir" yaml:"filter_dir"`
	FilterTable      []models.FilterSpec `mapstructure:"filter_table" yaml:"filter_table" validate:"required,min=1,unique=Label,dive"`
	ModelDirectories []string            `mapstructure:"model_directories" yaml:"model_directories" validate:"dive,required"`
	OutputRoot       string              `mapstructure:"output_root" yaml:"output_root" validate:"required"`
	Normalization    string              `mapstructure:"normalization" yaml:"normalization" validate:"omitempty,oneof=peak area"`
	Stages           []string            `mapstructure:"stages" yaml:"stages" validate:"required,min=1,unique,dive,oneof=normalize export convolve"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(pipelineStructLevel, PipelineConfig{})
	return v
}

// pipelineStructLevel checks rules that span fields
func pipelineStructLevel(sl validator.StructLevel) {
	p := sl.Current().Interface().(PipelineConfig)

	needsNormalize := slices.Contains(p.Stages, models.StageConvolve) || slices.Contains(p.Stages, models.StageExport)
	if needsNormalize && !slices.Contains(p.Stages, models.StageNormalize) {
		sl.ReportError(p.Stages, "Stages", "stages", "requires_normalize", "")
	}
	if slices.Contains(p.Stages, models.StageConvolve) && len(p.ModelDirectories) == 0 {
		sl.ReportError(p.ModelDirectories, "ModelDirectories", "model_directories", "required_for_convolve", "")
	}

	// Artifacts and fluxes are keyed by family name, so two directories with
	// the same base name would overwrite each other.
	seen := make(map[string]string, len(p.ModelDirectories))
	for _, dir := range p.ModelDirectories {
		family := convolve.FamilyName(dir)
		if prev, ok := seen[family]; ok {
			sl.ReportError(p.ModelDirectories, "ModelDirectories", "model_directories", "unique_family", prev+" "+dir)
			return
		}
		seen[family] = dir
	}
}

// ValidationError lists every invalid field of a pipeline configuration
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid pipeline configuration: " + strings.Join(e.Fields, "; ")
}

// ValidateStages checks a stage selection on its own, as used for API requests
func ValidateStages(stages []string) error {
	p := PipelineConfig{
		FilterTable:      []models.FilterSpec{{Path: "-", Label: "-"}},
		ModelDirectories: []string{"-"},
		OutputRoot:       "-",
		Stages:           stages,
	}
	return p.Validate()
}

// Validate reports every invalid field of p
func (p *PipelineConfig) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, e := range verrs {
		out.Fields = append(out.Fields, fmt.Sprintf("%s: %s", e.Namespace(), message(e)))
	}
	return out
}

// message returns a human-readable message for a validation failure
func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", e.Param())
	case "unique":
		return "must not contain duplicates"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "requires_normalize":
		return "convolve and export require the normalize stage"
	case "required_for_convolve":
		return "at least one model directory is required for convolve"
	case "unique_family":
		return fmt.Sprintf("model directories must have distinct base names: %s", e.Param())
	default:
		return fmt.Sprintf("failed validation: %s", e.Tag())
	}
}

// LoadPipeline reads a pipeline YAML file. An empty path yields
// DefaultPipeline.
func LoadPipeline(path string) (*PipelineConfig, error) {
	if path == "" {
		p := DefaultPipeline()
		return p, p.Validate()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("normalization", "peak")
	v.SetDefault("stages", []string{models.StageNormalize, models.StageConvolve})
	v.SetDefault("output_root", "convolved")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}

	var p PipelineConfig
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline config %s: %w", path, err)
	}
	for i := range p.Stages {
		p.Stages[i] = strings.ToLower(strings.TrimSpace(p.Stages[i]))
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// modelFamilies are the r17 YSO model families convolved by default
var modelFamilies = []string{
	"s-pbhmi", "s-pbsmi", "s-p-hmi", "sp--hmi",
	"s-p-smi", "sp--smi", "spubsmi", "s---s-i",
	"s---smi", "s-ubsmi", "s-u-hmi",
}

// DefaultPipeline returns the GAIA DR2 and SDSS filter set convolved with the
// r17 model families. Filter tables are SVO downloads in angstrom.
func DefaultPipeline() *PipelineConfig {
	filters := []models.FilterSpec{
		{Path: "GAIA-GAIA2r.G.dat", Label: "GAIA_G"},
		{Path: "GAIA-GAIA2r.Gbp.dat", Label: "GAIA_B"},
		{Path: "GAIA-GAIA2r.Grp.dat", Label: "GAIA_R"},
		{Path: "SLOAN-SDSS.u.dat", Label: "SDSS_u"},
		{Path: "SLOAN-SDSS.g.dat", Label: "SDSS_g"},
		{Path: "SLOAN-SDSS.r.dat", Label: "SDSS_r"},
		{Path: "SLOAN-SDSS.i.dat", Label: "SDSS_i"},
		{Path: "SLOAN-SDSS.z.dat", Label: "SDSS_z"},
	}
	for i := range filters {
		filters[i].WavelengthUnit = models.UnitAngstrom
	}

	dirs := make([]string, len(modelFamilies))
	for i, family := range modelFamilies {
		dirs[i] = "models_r17/" + family
	}

	return &PipelineConfig{
		FilterDir:        "filters",
		FilterTable:      filters,
		ModelDirectories: dirs,
		OutputRoot:       "convolved",
		Normalization:    "peak",
		Stages:           []string{models.StageNormalize, models.StageConvolve},
	}
}
