// Package vectorutils builds vector.Index drivers from configuration.
package vectorutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/vector"
	"github.com/sumika-ai/sumika/pkg/vector/chroma"
	"github.com/sumika-ai/sumika/pkg/vector/pinecone"
	"github.com/sumika-ai/sumika/pkg/vector/sqlitevec"
)

type NewIndexOpts struct {
	ProviderType string
	Target       string
	APIKey       string
	Dimensions   int
	Logger       *zap.Logger
}

func NewIndex(o *NewIndexOpts) (vector.Index, error) {
	switch o.ProviderType {
	case "pinecone":
		return pinecone.NewPineconeDriver(pinecone.Config{
			Host:   o.Target,
			APIKey: o.APIKey,
		}, o.Logger)
	case "chroma":
		return chroma.NewChromaDriver(chroma.Config{
			URL: o.Target,
		}, o.Logger)
	case "sqlite-vec":
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
