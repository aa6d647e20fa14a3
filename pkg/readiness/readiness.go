package readiness

import (
	"DetectionGateway/internal/entity"
	"os"
)

type IProber interface {
	Probe() entity.ReadinessReport
}

type Artifacts struct {
	Interpreter string
	Script      string
	Weights     string
}

type prober struct {
	artifacts Artifacts
}

func New(artifacts Artifacts) IProber {
	return &prober{artifacts: artifacts}
}

// Probe stats the three artifacts on every call. It never runs them and
// never fails; anything unreadable counts as absent.
func (p *prober) Probe() entity.ReadinessReport {
	report := entity.ReadinessReport{
		InterpreterPresent: exists(p.artifacts.Interpreter),
		ScriptPresent:      exists(p.artifacts.Script),
		WeightsPresent:     exists(p.artifacts.Weights),
	}
	report.Ready = report.InterpreterPresent && report.ScriptPresent && report.WeightsPresent

	return report
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
