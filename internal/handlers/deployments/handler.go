package deployments

import (
	"github.com/proxygrid/proxygrid/internal/crypto"
	"github.com/proxygrid/proxygrid/internal/models"
	core "github.com/proxygrid/proxygrid/internal/modules"
)

var engine *core.DeploymentEngine

// Init wires the handler package to the deployment engine
func Init(e *core.DeploymentEngine) {
	engine = e
}

// encryptEnvironment converts a request environment map into the
// stored JSON blob with values encrypted at rest.
func encryptEnvironment(environment map[string]string) (models.JSON, error) {
	if environment == nil {
		return nil, nil
	}
	encrypted, err := crypto.EncryptEnvironment(environment)
	if err != nil {
		return nil, err
	}
	return models.JSONFrom(encrypted)
}

// withDecryptedEnvironment returns a copy of the deployment with its
// environment values decrypted for the response.
func withDecryptedEnvironment(d *models.Deployment) *models.Deployment {
	if d == nil || len(d.Environment) == 0 {
		return d
	}
	var environment map[string]string
	if err := d.Environment.UnmarshalTo(&environment); err != nil {
		return d
	}
	decrypted, err := models.JSONFrom(crypto.DecryptEnvironment(environment))
	if err != nil {
		return d
	}
	out := *d
	out.Environment = decrypted
	return &out
}
