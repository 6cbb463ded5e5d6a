package roster

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edupulse/internal/model"
	"edupulse/internal/testutil"
)

func TestImporter_Import(t *testing.T) {
	tests := []struct {
		name        string
		csv         string
		batchSize   int
		wantErr     error
		wantSuccess int
		wantFailed  int
		wantErrors  []string
	}{
		{
			name:        "template imports cleanly",
			csv:         TemplateCSV,
			wantSuccess: 2,
			wantErrors:  []string{},
		},
		{
			name: "row errors do not stop the import",
			csv: "name,index_number,grade,section,specialty,status\n" +
				"Ama Owusu,2001,10,A,,active\n" +
				"No Grade,2002,,A,,active\n" +
				"Short,2003,10\n" +
				"Too Old,2004,14,A,,active\n" +
				"\n" +
				"Kofi Mensah,2005,11,B,Arts,AT_RISK\n",
			wantSuccess: 2,
			wantFailed:  3,
			wantErrors: []string{
				"Row 3: Missing required fields",
				"Row 4: Incomplete row",
				"Row 5: invalid grade",
			},
		},
		{
			name: "duplicate inside a batch falls back to row inserts",
			csv: "name,index_number,grade,section\n" +
				"Ama,3001,10,A\n" +
				"Kofi,3002,10,A\n" +
				"Ama Again,3001,10,A\n",
			batchSize:   10,
			wantSuccess: 2,
			wantFailed:  1,
		},
		{
			name:    "missing required header",
			csv:     "name,grade,section,status\nAma,10,A,active\n",
			wantErr: ErrMissingHeads,
		},
		{
			name:    "header only",
			csv:     "name,index_number,grade,section\n",
			wantErr: ErrEmptyCSV,
		},
		{
			name:    "empty file",
			csv:     "",
			wantErr: ErrEmptyCSV,
		},
		{
			name:        "byte order mark and header case",
			csv:         "\ufeffName, Index_Number ,GRADE,Section\nAma,4001,9,C\n",
			wantSuccess: 1,
			wantErrors:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewDB(t)
			teacher := testutil.CreateTeacher(t, db, "teacher@school.test")
			repo := NewRepository(db.Client)
			im := NewImporter(repo, tt.batchSize, zap.NewNop())

			res, err := im.Import(context.Background(), teacher.ID, strings.NewReader(tt.csv))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantFailed, res.Failed)
			assert.Len(t, res.Errors, tt.wantFailed)
			if tt.wantErrors != nil {
				assert.Equal(t, tt.wantErrors, res.Errors)
			}

			n, err := repo.Count(context.Background(), teacher.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, n)
		})
	}
}

func TestImporter_ImportNormalisesStatus(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateTeacher(t, db, "teacher@school.test")
	repo := NewRepository(db.Client)

	_, err := NewImporter(repo, 0, zap.NewNop()).Import(context.Background(), teacher.ID, strings.NewReader(
		"name,index_number,grade,section,specialty,status\n"+
			"Ama,1,10,A,,Inactive\n"+
			"Kofi,2,10,A,,graduated\n"))
	require.NoError(t, err)

	students, err := repo.List(context.Background(), teacher.ID, Filter{})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, model.StudentInactive, students[0].Status)
	assert.Equal(t, model.StudentActive, students[1].Status)
	assert.Nil(t, students[0].Specialty)
}
