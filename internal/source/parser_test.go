package source

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     Text
		want   float64
		wantOK bool
	}{
		{"150", 150, true},
		{" 1234.56 ", 1234.56, true},
		{"-42.5", -42.5, true},
		{"", 0, true},
		{"abc", 0, false},
		{"1,234", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseAmount(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDecodeBudget_Appropriations(t *testing.T) {
	body := []byte(`[
		{"segment5code":"41","segment5":"PERSONAL SERVICES","objectcode":"411000","object":"SALARIES","ytd":"150","adopted":"100"},
		{"segment5code":"41","segment5":"PERSONAL SERVICES","objectcode":"412000","object":"OVERTIME","ytd":"oops","adopted":null},
		{"segment2code":10,"segment2":"POLICE","ytd":12.5}
	]`)

	recs, ps, err := DecodeBudget(body, Appropriations)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "41", recs[0].Type.Code)
	assert.Equal(t, "PERSONAL SERVICES", recs[0].Type.Name)
	assert.Equal(t, "411000", recs[0].Object.Code)
	assert.Equal(t, 150.0, recs[0].ActualToDate)
	assert.Equal(t, 100.0, recs[0].AdoptedBudget)

	assert.Equal(t, 0.0, recs[1].ActualToDate)
	assert.Equal(t, 0.0, recs[1].AdoptedBudget)

	assert.Equal(t, "10", recs[2].Department.Code, "numeric JSON codes decode as text")
	assert.Equal(t, 12.5, recs[2].ActualToDate)

	assert.Equal(t, 3, ps.Rows)
	assert.Equal(t, 1, ps.NumericInvalid)
}

func TestDecodeBudget_RevenuesUseSegment8(t *testing.T) {
	body := []byte(`[{"segment5code":"41","segment8code":"R1","segment8":"PROPERTY TAX","ytd":"5","adopted":"10"}]`)
	recs, _, err := DecodeBudget(body, Revenues)
	require.NoError(t, err)
	assert.Equal(t, "R1", recs[0].Type.Code)
	assert.Equal(t, "PROPERTY TAX", recs[0].Type.Name)
}

func TestDecodeBudget_Malformed(t *testing.T) {
	for _, body := range []string{`{"error":true,"message":"bad query"}`, `not json`} {
		_, _, err := DecodeBudget([]byte(body), Appropriations)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("DecodeBudget(%s) error = %v, want ErrDecode", body, err)
		}
	}
}

func TestDecodeBudget_Empty(t *testing.T) {
	recs, _, err := DecodeBudget([]byte(`[]`), Appropriations)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDecodeEmployees_SortedAndCapped(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 120; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"employeeid":"E%d","firstname":"A","lastname":"B","position":"CLERK","sum_totalpay":"%d"}`, i, i*10)
	}
	sb.WriteString("]")

	emps, ps, err := DecodeEmployees([]byte(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, 120, ps.Rows)
	require.Len(t, emps, 100)
	assert.Equal(t, "E119", emps[0].ID)
	assert.Equal(t, 1190.0, emps[0].TotalPay)
	for i := 1; i < len(emps); i++ {
		assert.GreaterOrEqual(t, emps[i-1].TotalPay, emps[i].TotalPay)
	}
}

func TestDecodeVendors(t *testing.T) {
	body := []byte(`[
		{"vendorname":"ACME","description":"PARTS","sum_actual":"10"},
		{"vendorname":"GLOBEX","description":"FUEL","sum_actual":"250.75"}
	]`)
	vs, _, err := DecodeVendors(body)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "GLOBEX", vs[0].Vendor)
	assert.Equal(t, 250.75, vs[0].Actual)
}

func TestDecodeDepartments(t *testing.T) {
	body := []byte(`[
		{"segment2code":"20","segment2":"FIRE"},
		{"segment2code":"10","segment2":"POLICE"},
		{"segment2code":"","segment2":"NO CODE"},
		{"segment2code":"10","segment2":"POLICE"}
	]`)
	depts, err := DecodeDepartments(body)
	require.NoError(t, err)
	require.Len(t, depts, 2)
	assert.Equal(t, "10", depts[0].Code)
	assert.Equal(t, "FIRE", depts[1].Name)
}

func TestDecodeSubGroups(t *testing.T) {
	body := []byte(`[{"segment3code":"1020","segment3":"PATROL"},{"segment3code":"1010","segment3":"ADMIN"}]`)
	subs, err := DecodeSubGroups(body)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "1010", subs[0].Code)
}
