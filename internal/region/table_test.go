package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

func TestTable_Lookup(t *testing.T) {
	table, err := NewTable(Builtin(), "US")
	require.NoError(t, err)

	tests := []struct {
		host     string
		code     string
		currency string
		matched  bool
	}{
		{"www.amazon.eg", "EG", "EGP", true},
		{"amazon.eg", "EG", "EGP", true},
		{"www.amazon.com.tr", "TR", "TRY", true},
		{"smile.amazon.com", "US", "USD", true},
		{"www.amazon.co.uk:443", "GB", "GBP", true},
		{"WWW.AMAZON.DE.", "DE", "EUR", true},
		{"www.trendyol.com", "SA", "SAR", true},
		{"notamazon.eg", "EG", "EGP", true},
		{"shop.example.eg", "EG", "EGP", true},
		{"www.jumia.com.eg", "EG", "EGP", true},
		{"www.noon.com.sa", "SA", "SAR", true},
		{"www.argos.co.uk", "GB", "GBP", true},
		{"www.otto.de", "DE", "EUR", true},
		{"www.hepsiburada.com.tr", "TR", "TRY", true},
		{"shop.example.org", "US", "USD", false},
		{"example.com", "US", "USD", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, ok := table.Lookup(tt.host)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.currency, got.Currency)
		})
	}
}

func TestTable_ByCodePrefersEarlierEntries(t *testing.T) {
	table, err := NewTable(Builtin(), "EG")
	require.NoError(t, err)

	sa, ok := table.ByCode("sa")
	require.True(t, ok)
	assert.Empty(t, sa.Storefront, "amazon.sa is listed before trendyol")

	assert.Equal(t, "Egypt", table.Default().DeliveryLocation)
}

func TestTable_ByLocation(t *testing.T) {
	table, err := NewTable(Builtin(), "US")
	require.NoError(t, err)

	tests := []struct {
		text    string
		code    string
		matched bool
	}{
		{"Deliver to London", "GB", true},
		{"Deliver to Cairo", "EG", true},
		{"Delivering to United Arab Emirates", "AE", true},
		{"DELIVER TO GERMANY", "DE", true},
		{"New York 10001", "US", true},
		{"Deliver to Atlantis", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := table.ByLocation(tt.text)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestNewTable_Errors(t *testing.T) {
	t.Run("unknown default", func(t *testing.T) {
		_, err := NewTable(Builtin(), "ZZ")
		assert.Error(t, err)
	})

	t.Run("invalid currency", func(t *testing.T) {
		entries := []Entry{{Suffix: "shop.test", Region: models.RegionConfig{
			Code: "US", Locale: "en-US", Currency: "dollars", DeliveryLocation: "United States",
		}}}
		_, err := NewTable(entries, "US")
		assert.Error(t, err)
	})

	t.Run("invalid locale", func(t *testing.T) {
		entries := []Entry{{Suffix: "shop.test", Region: models.RegionConfig{
			Code: "US", Locale: "not a locale!", Currency: "USD", DeliveryLocation: "United States",
		}}}
		_, err := NewTable(entries, "US")
		assert.Error(t, err)
	})
}

func TestLoad_ExtendsBuiltinTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	content := `regions:
  - suffix: noon.com
    region:
      code: AE
      locale: en-AE
      currency: AED
      delivery_location: United Arab Emirates
  - suffix: amazon.eg
    region:
      code: EG
      locale: ar-EG
      currency: EGP
      delivery_location: مصر
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := Load(path, "US")
	require.NoError(t, err)

	noon, ok := table.Lookup("www.noon.com")
	require.True(t, ok)
	assert.Equal(t, "AED", noon.Currency)

	eg, ok := table.Lookup("www.amazon.eg")
	require.True(t, ok)
	assert.Equal(t, "ar-EG", eg.Locale)

	_, ok = table.Lookup("www.amazon.de")
	assert.True(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "US")
	assert.Error(t, err)
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-AE,en;q=0.9", AcceptLanguage("en-AE"))
	assert.Equal(t, "de", AcceptLanguage("de"))
	assert.Equal(t, "en-US,en;q=0.9", AcceptLanguage("???"))
	assert.Equal(t, "ar", Language("ar-SA"))
}
