package projects

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/dependencies"
)

const (
	cleanUseConstant              = "clean [root ...]"
	cleanShortDescription         = "Remove persisted audit findings"
	cleanLongDescription          = "clean removes every finding the auditor previously persisted for the discovered projects."
	cleanedProjectTemplate        = "cleaned %s\n"
	cleanCompletedMessageConstant = "findings cleared"
)

// CleanCommandBuilder assembles the clean command.
type CleanCommandBuilder struct {
	LoggerProvider             LoggerProvider
	ConfigurationProvider      func() AuditConfiguration
	StoreConfigurationProvider func() StoreConfiguration
	Collaborators
}

// Build constructs the clean command.
func (builder *CleanCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   cleanUseConstant,
		Short: cleanShortDescription,
		Long:  cleanLongDescription,
		RunE:  builder.run,
	}
	return command, nil
}

func (builder *CleanCommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := resolveAuditConfiguration(builder.ConfigurationProvider)
	logger := resolveLogger(builder.LoggerProvider)
	executionContext := commandContext(command)

	projects, projectsError := resolveProjects(builder.Discoverer, determineRoots(arguments, configuration.Roots), logger)
	if projectsError != nil {
		return projectsError
	}

	storeConfiguration := resolveStoreConfiguration(builder.StoreConfigurationProvider)
	fileSource, sourceError := dependencies.ResolveFileSource(builder.FileSource, storeConfiguration.Configuration, logger)
	if sourceError != nil {
		return sourceError
	}
	persistence, persistenceError := openPersistence(executionContext, builder.Collaborators, storeConfiguration, logger)
	if persistenceError != nil {
		return persistenceError
	}
	defer func() {
		_ = persistence.Close()
	}()

	engine, engineError := audit.NewEngine(fileSource, persistence.FindingSink, logger)
	if engineError != nil {
		return engineError
	}

	for _, project := range projects {
		if cleanError := engine.Clean(executionContext, project); cleanError != nil {
			return cleanError
		}
		logger.Info(cleanCompletedMessageConstant, zap.String(logFieldProjectConstant, project.Root))
		fmt.Fprintf(command.OutOrStdout(), cleanedProjectTemplate, project.Root)
	}
	return nil
}

func resolveAuditConfiguration(provider func() AuditConfiguration) AuditConfiguration {
	if provider == nil {
		return DefaultToolsConfiguration().Audit
	}
	return provider().sanitize()
}
