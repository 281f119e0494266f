package intake

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/VaultAI/internal/model"
)

func TestValidateEmpty(t *testing.T) {
	out := Validate(nil)
	assert.Empty(t, out.Accepted)
	assert.Equal(t, 0, out.RejectedCount())
}

func TestValidateAcceptsSupportedTypes(t *testing.T) {
	out := Validate([]Candidate{
		{Name: "deed.png", MimeType: "image/png", Size: 1024},
		{Name: "title.pdf", MimeType: "application/pdf", Size: 2048},
		{Name: "appraisal.docx", MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Size: 10},
		{Name: "notes.txt", MimeType: "text/plain", Size: 10},
	})
	require.Len(t, out.Accepted, 3)
	assert.Equal(t, "deed.png", out.Accepted[0].Name)
	assert.Equal(t, "title.pdf", out.Accepted[1].Name)
	assert.Equal(t, "appraisal.docx", out.Accepted[2].Name)
	assert.NotEmpty(t, out.Accepted[0].ID)
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, Rejection{Name: "notes.txt", Reason: ReasonType}, out.Rejected[0])
}

func TestValidateRejectsOversizedImage(t *testing.T) {
	out := Validate([]Candidate{{Name: "huge.jpg", MimeType: "image/jpeg", Size: 11 << 20}})
	assert.Empty(t, out.Accepted)
	assert.Equal(t, 1, out.RejectedCount())
	assert.Equal(t, ReasonSize, out.Rejected[0].Reason)
}

func TestValidateBoundarySize(t *testing.T) {
	out := Validate([]Candidate{
		{Name: "exact.pdf", MimeType: "application/pdf", Size: MaxFileSize},
		{Name: "over.pdf", MimeType: "application/pdf", Size: MaxFileSize + 1},
	})
	require.Len(t, out.Accepted, 1)
	assert.Equal(t, "exact.pdf", out.Accepted[0].Name)
	assert.Equal(t, 1, out.RejectedCount())
}

func TestAllowedTypeIgnoresParameters(t *testing.T) {
	assert.True(t, AllowedType("application/pdf; charset=binary"))
	assert.True(t, AllowedType("IMAGE/PNG"))
	assert.False(t, AllowedType(""))
}

func TestAppendKeepsExisting(t *testing.T) {
	existing := []model.AcceptedFile{{ID: "a"}}
	out := Append(existing, []model.AcceptedFile{{ID: "b"}, {ID: "c"}})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out))
	assert.Len(t, existing, 1)
}

func TestRemove(t *testing.T) {
	files := []model.AcceptedFile{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out, err := Remove(files, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(out))
	assert.Equal(t, []string{"a", "b", "c"}, ids(files))

	_, err = Remove(files, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = Remove(files, -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSniffMIME(t *testing.T) {
	assert.Equal(t, "image/png", SniffMIME("image/png", nil))
	assert.Equal(t, "application/pdf", SniffMIME("", []byte("%PDF-1.7\n")))
	assert.Equal(t, "application/pdf", SniffMIME("application/octet-stream", []byte("%PDF-1.4\n")))
}

func TestIntakeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	mimeGen := gen.OneConstOf("image/png", "image/jpeg", "application/pdf", "text/plain", "application/msword-document", "video/mp4")

	properties.Property("oversized files are never accepted", prop.ForAll(
		func(size int64, mt string) bool {
			out := Validate([]Candidate{{Name: "f", MimeType: mt, Size: size}})
			if size > MaxFileSize {
				return len(out.Accepted) == 0 && out.RejectedCount() == 1
			}
			return len(out.Accepted)+out.RejectedCount() == 1
		},
		gen.Int64Range(0, 3*MaxFileSize),
		mimeGen,
	))

	properties.Property("remove drops exactly the indexed entry", prop.ForAll(
		func(n int, seed int) bool {
			files := make([]model.AcceptedFile, n)
			for i := range files {
				files[i] = model.AcceptedFile{ID: string(rune('a' + i))}
			}
			index := seed % n
			out, err := Remove(files, index)
			if err != nil || len(out) != n-1 {
				return false
			}
			j := 0
			for i, f := range files {
				if i == index {
					continue
				}
				if out[j].ID != f.ID {
					return false
				}
				j++
			}
			return true
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func ids(files []model.AcceptedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.ID
	}
	return out
}
