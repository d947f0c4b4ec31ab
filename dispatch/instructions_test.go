package dispatch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
)

func TestBaseKeyword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"P3-Glass cleaner", "glass cleaner"},
		{"HC12B - Floor Cleaner", "floor cleaner"},
		{"  p10-Hand wash ", "hand wash"},
		{"Glass cleaner", "glass cleaner"},
		{"Anti-bacterial wipes", "anti-bacterial wipes"},
		{"All-purpose cleaner", "all-purpose cleaner"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseKeyword(tt.in))
		})
	}
}

func TestBuildTask(t *testing.T) {
	routing := config.SitesConfig{
		Exclusions: map[models.SiteID][]string{
			models.SiteSaco:      {"Glass Cleaner"},
			models.SiteMumzworld: {"degreaser"},
		},
	}

	t.Run("modifiers", func(t *testing.T) {
		task := BuildTask(models.Instruction{
			TypeOfProduct:   "P3-Glass cleaner",
			SearchModifiers: "gogreen: window spray ; streak free;Amazon:glass cleaner spray; gogreen:glass wipe;;",
		}, routing)

		assert.Equal(t, "glass cleaner streak free", task.Keyword)
		assert.Equal(t, []string{"streak free"}, task.GeneralModifiers)
		assert.Equal(t, []string{"window spray", "glass wipe"}, task.SiteKeywordOverrides[models.SiteGoGreen])
		assert.Equal(t, []string{"glass cleaner spray"}, task.KeywordsFor(models.SiteAmazon))
		assert.Equal(t, []string{"glass cleaner streak free"}, task.KeywordsFor(models.SiteSaco))
		assert.Equal(t, models.ModeVolume, task.Mode)
	})

	t.Run("exclusions use the base keyword", func(t *testing.T) {
		task := BuildTask(models.Instruction{
			TypeOfProduct:   "P3-Glass cleaner",
			SearchModifiers: "streak free",
		}, routing)
		assert.True(t, task.Excludes(models.SiteSaco))
		assert.False(t, task.Excludes(models.SiteMumzworld))
	})

	t.Run("units mode", func(t *testing.T) {
		for _, typ := range []string{"W1-Wet Wipes", "Cleaning rags", "Microfiber cloth", "Toilet Brush"} {
			assert.Equal(t, models.ModeUnits, BuildTask(models.Instruction{TypeOfProduct: typ}, routing).Mode, typ)
		}
		assert.Equal(t, models.ModeVolume, BuildTask(models.Instruction{TypeOfProduct: "Dish soap"}, routing).Mode)
	})

	t.Run("custom unit keywords", func(t *testing.T) {
		task := BuildTask(models.Instruction{TypeOfProduct: "Sponge pack"}, routing, "sponge")
		assert.Equal(t, models.ModeUnits, task.Mode)
	})
}

func TestReadInstructions(t *testing.T) {
	input := "\ufeffIndustry,Sub industry,Type of product,Generic product type,Search Modifiers\n" +
		"Cleaning,Pets,P3-Glass cleaner,Glass cleaner,gogreen:glass spray\n" +
		"Cleaning,,P4-Degreaser,Degreaser,\n" +
		"Cleaning,Home,,Hand wash,\n" +
		"Cleaning,Home,\"P5-Floor cleaner, pine\",Floor cleaner\n"

	got, err := ReadInstructions(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.Instruction{
		Industry:           "Cleaning",
		SubIndustry:        "Pets",
		TypeOfProduct:      "P3-Glass cleaner",
		GenericProductType: "Glass cleaner",
		SearchModifiers:    "gogreen:glass spray",
	}, got[0])
	assert.Equal(t, "P5-Floor cleaner, pine", got[1].TypeOfProduct)
	assert.Empty(t, got[1].SearchModifiers)
}

func TestReadInstructions_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no type column", "Sub industry,Generic product type\nHome,Soap\n"},
		{"no sub-industry column", "Type of product\nSoap\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadInstructions(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, models.ErrCodeConfig, models.CodeOf(err))
		})
	}
}

func TestLoadInstructions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.csv")
	require.NoError(t, os.WriteFile(path, []byte("Sub industry,Type of product\nHome,Soap\n"), 0o644))

	got, err := LoadInstructions(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Home", got[0].SubIndustry)

	_, err = LoadInstructions(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeConfig, models.CodeOf(err))
}
