package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDocumentPlainTextPassthrough(t *testing.T) {
	raw := "Dano\n\n\n\nUsuário sem acesso ao sistema\n\n\nExecução"

	out, err := NormalizeDocument(raw)

	require.NoError(t, err)
	assert.Equal(t, "Dano\n\nUsuário sem acesso ao sistema\n\nExecução", out)
}

func TestNormalizeDocumentStripsHTML(t *testing.T) {
	raw := `<html><head><title>OS</title><style>p{color:red}</style></head><body>
<script>alert("x")</script>
<h1>Ordem de Serviço</h1>
<p>Dano</p>
<p>Senha expirada no Tasy</p>
</body></html>`

	out, err := NormalizeDocument(raw)

	require.NoError(t, err)
	assert.Contains(t, out, "Ordem de Serviço")
	assert.Contains(t, out, "Dano")
	assert.Contains(t, out, "Senha expirada no Tasy")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "color:red")
	assert.NotContains(t, out, "<p>")
}

func TestNormalizeDocumentTrimsLines(t *testing.T) {
	out, err := NormalizeDocument("  abre chamado  \n   verifica acesso   ")

	require.NoError(t, err)
	assert.Equal(t, "abre chamado\nverifica acesso", out)
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, looksLikeHTML("<!DOCTYPE html><html></html>"))
	assert.True(t, looksLikeHTML("texto com <br> quebra"))
	assert.False(t, looksLikeHTML("usuário relatou que a < b no relatório"))
}
