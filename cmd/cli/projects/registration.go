package projects

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/audit"
)

const (
	registerUseConstant            = "register [root ...]"
	registerShortDescription       = "Attach the auditor to projects"
	registerLongDescription        = "register records that the discovered projects should be audited by watch."
	unregisterUseConstant          = "unregister [root ...]"
	unregisterShortDescription     = "Detach the auditor from projects"
	unregisterLongDescription      = "unregister removes the auditor registration of the discovered projects."
	statusUseConstant              = "status [root ...]"
	statusShortDescription         = "Show which projects have the auditor attached"
	statusLongDescription          = "status prints the registration state of every discovered project."
	registeredStateConstant        = "registered"
	unregisteredStateConstant      = "unregistered"
	projectStateTemplateConstant   = "%s\t%s\n"
	registrationChangedMessage     = "project registration changed"
	logFieldRegistrationStateConst = "registration"
)

type registrationAction int

const (
	registrationActionRegister registrationAction = iota
	registrationActionUnregister
	registrationActionStatus
)

// RegistrationCommandBuilder assembles the register, unregister, and status commands.
type RegistrationCommandBuilder struct {
	LoggerProvider             LoggerProvider
	ConfigurationProvider      func() AuditConfiguration
	StoreConfigurationProvider func() StoreConfiguration
	Collaborators
}

// Build constructs the register, unregister, and status commands.
func (builder *RegistrationCommandBuilder) Build() ([]*cobra.Command, error) {
	return []*cobra.Command{
		builder.command(registerUseConstant, registerShortDescription, registerLongDescription, registrationActionRegister),
		builder.command(unregisterUseConstant, unregisterShortDescription, unregisterLongDescription, registrationActionUnregister),
		builder.command(statusUseConstant, statusShortDescription, statusLongDescription, registrationActionStatus),
	}, nil
}

func (builder *RegistrationCommandBuilder) command(use string, short string, long string, action registrationAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, action)
		},
	}
}

func (builder *RegistrationCommandBuilder) run(command *cobra.Command, arguments []string, action registrationAction) error {
	configuration := resolveAuditConfiguration(builder.ConfigurationProvider)
	logger := resolveLogger(builder.LoggerProvider)
	executionContext := commandContext(command)

	projects, projectsError := resolveProjects(builder.Discoverer, determineRoots(arguments, configuration.Roots), logger)
	if projectsError != nil {
		return projectsError
	}

	persistence, persistenceError := openPersistence(executionContext, builder.Collaborators, resolveStoreConfiguration(builder.StoreConfigurationProvider), logger)
	if persistenceError != nil {
		return persistenceError
	}
	defer func() {
		_ = persistence.Close()
	}()

	for _, project := range projects {
		registered, actionError := applyRegistrationAction(executionContext, persistence.Registration, project, action)
		if actionError != nil {
			return actionError
		}
		state := unregisteredStateConstant
		if registered {
			state = registeredStateConstant
		}
		if action != registrationActionStatus {
			logger.Info(registrationChangedMessage, zap.String(logFieldProjectConstant, project.Root), zap.String(logFieldRegistrationStateConst, state))
		}
		fmt.Fprintf(command.OutOrStdout(), projectStateTemplateConstant, state, project.Root)
	}
	return nil
}

func applyRegistrationAction(executionContext context.Context, registration audit.ProjectRegistration, project audit.Project, action registrationAction) (bool, error) {
	switch action {
	case registrationActionRegister:
		if registerError := registration.Register(executionContext, project); registerError != nil {
			return false, registerError
		}
		return true, nil
	case registrationActionUnregister:
		if unregisterError := registration.Unregister(executionContext, project); unregisterError != nil {
			return false, unregisterError
		}
		return false, nil
	default:
		return registration.IsRegistered(executionContext, project)
	}
}
