package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIndexColumns(t *testing.T) {
	cases := []struct {
		name     string
		indexdef string
		want     []string
	}{
		{
			"single column",
			"CREATE INDEX idx_leads_status ON public.leads USING btree (status)",
			[]string{"status"},
		},
		{
			"composite",
			"CREATE INDEX idx_call_logs_lead_id_initiated_at ON public.call_logs USING btree (lead_id, initiated_at)",
			[]string{"lead_id", "initiated_at"},
		},
		{
			"unique with quoted column",
			`CREATE UNIQUE INDEX idx_leads_email ON public.leads USING btree ("email")`,
			[]string{"email"},
		},
		{
			"ordering suffix stripped",
			"CREATE INDEX idx_call_logs_initiated_at ON public.call_logs USING btree (initiated_at DESC)",
			[]string{"initiated_at"},
		},
		{
			"no column list",
			"garbage",
			nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseIndexColumns(tc.indexdef))
		})
	}
}

func TestTables(t *testing.T) {
	assert.Equal(t, []string{"leads", "contacts", "call_logs"}, Tables())
}
