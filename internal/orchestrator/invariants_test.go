package orchestrator

import (
	"math/rand"
	"testing"

	"termweave/pkg/models"
)

// TestRandomizedOperationSequences drives the orchestrator through long
// random operation sequences and checks the structural invariants after
// every step. Errors from individual operations are expected; a state
// that fails verification is not.
func TestRandomizedOperationSequences(t *testing.T) {
	seeds := []int64{1, 7, 42, 1337, 99991}
	capabilities := []models.Capability{
		models.CapabilityShell,
		models.CapabilityFile,
		models.CapabilityGit,
	}
	types := []models.CommandType{
		models.CommandShell,
		models.CommandFileOp,
		models.CommandGit,
	}

	for _, seed := range seeds {
		rng := rand.New(rand.NewSource(seed))
		o := New(Config{
			MaxAgents:     6,
			MaxTerminals:  3,
			MaxQueueSize:  20,
			MaxExecutions: 4,
		})

		randomAgent := func() models.AgentID {
			n := o.agents.size()
			if n == 0 {
				return 1
			}
			return models.AgentID(rng.Intn(n) + 1)
		}
		randomCommand := func() models.CommandID {
			n := o.commands.size()
			if n == 0 {
				return 1
			}
			return models.CommandID(rng.Intn(n) + 1)
		}

		for step := 0; step < 500; step++ {
			switch rng.Intn(12) {
			case 0:
				caps := []models.Capability{capabilities[rng.Intn(len(capabilities))]}
				if rng.Intn(2) == 0 {
					caps = append(caps, capabilities[rng.Intn(len(capabilities))])
				}
				o.SpawnAgent(caps)
			case 1:
				cmd := models.NewCommand(types[rng.Intn(len(types))], "random work")
				if rng.Intn(2) == 0 {
					cmd.Approved = true
				}
				if n := o.commands.size(); n > 0 && rng.Intn(3) == 0 {
					cmd.DependsOn = []models.CommandID{models.CommandID(rng.Intn(n) + 1)}
				}
				o.QueueCommand(cmd)
			case 2:
				o.ApproveCommand(randomCommand())
			case 3:
				o.AssignCommand(randomAgent(), randomCommand())
			case 4:
				o.BeginExecution(randomAgent())
			case 5:
				o.CompleteExecution(randomAgent(), rng.Intn(2))
			case 6:
				o.FailExecution(randomAgent(), "induced failure")
			case 7:
				o.CancelExecution(randomAgent())
			case 8:
				o.ResetAgent(randomAgent())
			case 9:
				o.AutoAssign()
			case 10:
				o.AutoExecute()
			case 11:
				o.Step()
			}

			if violations := o.InvariantViolations(); len(violations) != 0 {
				t.Fatalf("seed %d step %d: invariants violated: %v", seed, step, violations)
			}
		}
	}
}

func TestVerifyInvariantsOnFreshOrchestrator(t *testing.T) {
	o := WithDefaults()
	if !o.VerifyInvariants() {
		t.Errorf("fresh orchestrator violates invariants: %v", o.InvariantViolations())
	}
}
