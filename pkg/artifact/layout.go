package artifact

import (
	"fmt"
	"path/filepath"

	pkgerrors "github.com/absmach/flcoord/pkg/errors"
)

const (
	DefInitialName  = "global_model_init.cbor"
	DefUpdatedName  = "global_model_updated.cbor"
	DefDeployedName = "deployed_model.cbor"
	DefLocalName    = "local_model.cbor"
	DefScriptName   = "train.py"
)

// Layout maps artifacts onto the data root:
//
//	<root>/server/<global artifacts>
//	<root>/clients/client<id>/{deployed model, local model, trainer script}
type Layout struct {
	Root         string
	InitialName  string
	UpdatedName  string
	DeployedName string
	LocalName    string
	ScriptName   string
}

func NewLayout(root string) Layout {
	return Layout{
		Root:         root,
		InitialName:  DefInitialName,
		UpdatedName:  DefUpdatedName,
		DeployedName: DefDeployedName,
		LocalName:    DefLocalName,
		ScriptName:   DefScriptName,
	}
}

func (l Layout) ServerDir() string {
	return filepath.Join(l.Root, "server")
}

func (l Layout) InitialPath() string {
	return filepath.Join(l.ServerDir(), l.InitialName)
}

func (l Layout) UpdatedPath() string {
	return filepath.Join(l.ServerDir(), l.UpdatedName)
}

// ServerArtifact resolves a server-side artifact by bare file name.
func (l Layout) ServerArtifact(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	return filepath.Join(l.ServerDir(), name), nil
}

func (l Layout) ClientDir(clientID string) string {
	return filepath.Join(l.Root, "clients", "client"+clientID)
}

func (l Layout) DeployedPath(clientID string) string {
	return filepath.Join(l.ClientDir(clientID), l.DeployedName)
}

func (l Layout) LocalPath(clientID string) string {
	return filepath.Join(l.ClientDir(clientID), l.LocalName)
}

func (l Layout) ScriptPath(clientID string) string {
	return filepath.Join(l.ClientDir(clientID), l.ScriptName)
}

// ValidateName accepts bare file names made of letters, digits, '.', '-'
// and '_'. Anything that could escape the server directory is rejected.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", pkgerrors.ErrInvalidArtifactName, name)
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			continue
		}

		return fmt.Errorf("%w: %q", pkgerrors.ErrInvalidArtifactName, name)
	}

	return nil
}

// ValidateClientID applies the same character rules to client ids, which
// become part of a directory name.
func ValidateClientID(id string) error {
	if id == "" {
		return pkgerrors.ErrEmptyKey
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}

		return fmt.Errorf("%w: invalid client id %q", pkgerrors.ErrValidation, id)
	}

	return nil
}
