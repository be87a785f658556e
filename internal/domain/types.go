// Package domain defines the core types shared by the stepping engine.
package domain

import "fmt"

// ActionID is a dense, zero-based index into an action registry.
type ActionID int32

// InvalidActionID marks an unassigned action.
const InvalidActionID ActionID = -1

// Valid reports whether the ID has been assigned.
func (id ActionID) Valid() bool { return id >= 0 }

// StreamID identifies the hardware stream or thread that owns a state.
type StreamID int32

// InvalidStreamID marks an unassigned stream.
const InvalidStreamID StreamID = -1

// Valid reports whether the ID has been assigned.
func (id StreamID) Valid() bool { return id >= 0 }

// TrackSlotID is the index of one element across all per-track arrays.
type TrackSlotID int32

// InvalidTrackSlotID marks an empty slot reference.
const InvalidTrackSlotID TrackSlotID = -1

// Valid reports whether the ID has been assigned.
func (id TrackSlotID) Valid() bool { return id >= 0 }

// EventID identifies an event within a run.
type EventID int32

// InvalidEventID marks an unassigned event.
const InvalidEventID EventID = -1

// Valid reports whether the ID has been assigned.
func (id EventID) Valid() bool { return id >= 0 }

// TrackID is unique within an event.
type TrackID int64

// InvalidTrackID marks an unassigned track.
const InvalidTrackID TrackID = -1

// Valid reports whether the ID has been assigned.
func (id TrackID) Valid() bool { return id >= 0 }

// ParticleID indexes a particle type.
type ParticleID int32

// MaterialID indexes a material.
type MaterialID int32

// VolumeID indexes a geometry volume.
type VolumeID int32

// InvalidVolumeID marks a track outside the world.
const InvalidVolumeID VolumeID = -1

// Valid reports whether the ID has been assigned.
func (id VolumeID) Valid() bool { return id >= 0 }

// ModelID indexes a discrete physics model.
type ModelID int32

// MemSpace is where a collection's data resides.
type MemSpace int

const (
	MemSpaceHost MemSpace = iota
	MemSpaceDevice
)

// String returns the lowercase name of the memory space.
func (m MemSpace) String() string {
	switch m {
	case MemSpaceHost:
		return "host"
	case MemSpaceDevice:
		return "device"
	default:
		return fmt.Sprintf("memspace(%d)", int(m))
	}
}

// ParseMemSpace converts a config string to a MemSpace.
func ParseMemSpace(s string) (MemSpace, error) {
	switch s {
	case "host", "":
		return MemSpaceHost, nil
	case "device":
		return MemSpaceDevice, nil
	default:
		return MemSpaceHost, fmt.Errorf("unknown memory space %q", s)
	}
}

// Ownership distinguishes owning buffers from borrowed views.
type Ownership int

const (
	OwnershipValue Ownership = iota
	OwnershipReference
)

// String returns the lowercase name of the ownership.
func (o Ownership) String() string {
	if o == OwnershipValue {
		return "value"
	}
	return "reference"
}

// StepActionOrder is the within-step ordering of explicit actions. Each step
// iteration is an ordered series of actions; an action with an earlier order
// always precedes an action with a later order.
type StepActionOrder int

const (
	OrderGenerate    StepActionOrder = iota // fill new track initializers
	OrderStart                              // initialize tracks
	OrderUserStart                          // user initialization of new tracks
	OrderSortStart                          // sort track slots after initialization
	OrderPre                                // pre-step physics and setup
	OrderUserPre                            // user actions for querying pre-step data
	OrderSortPre                            // sort track slots after setting pre-step
	OrderAlong                              // along-step
	OrderSortAlong                          // sort after determining first step action
	OrderPrePost                            // discrete selection kernel
	OrderSortPrePost                        // sort after selecting discrete interaction
	OrderPost                               // after step
	OrderUserPost                           // user actions after boundary crossing, collision
	OrderEnd                                // processing secondaries, locating vacancies
	numStepActionOrders
)

var orderNames = [...]string{
	"generate", "start", "user_start", "sort_start", "pre", "user_pre",
	"sort_pre", "along", "sort_along", "pre_post", "sort_pre_post", "post",
	"user_post", "end",
}

// String returns the snake_case name of the order.
func (o StepActionOrder) String() string {
	if o < 0 || o >= numStepActionOrders {
		return fmt.Sprintf("order(%d)", int(o))
	}
	return orderNames[o]
}

// TrackStatus is the lifecycle state of a track slot.
type TrackStatus uint8

const (
	StatusInactive     TrackStatus = iota // no track, or track finished
	StatusInitializing                    // newly created, not yet stepped
	StatusAlive                           // in flight
	StatusErrored                         // failed and awaiting the tracking cut
	StatusKilled                          // stopped by physics this step
)

// String returns the lowercase name of the status.
func (s TrackStatus) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusInitializing:
		return "initializing"
	case StatusAlive:
		return "alive"
	case StatusErrored:
		return "errored"
	case StatusKilled:
		return "killed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// IsActive reports whether the slot currently holds a track.
func (s TrackStatus) IsActive() bool { return s != StatusInactive }

// Vec3 is a Cartesian vector in cm or unitless direction.
type Vec3 [3]float64

// Primary is a user-supplied particle at the start of an event.
type Primary struct {
	ParticleID ParticleID
	Energy     float64 // MeV
	Position   Vec3
	Direction  Vec3
	Time       float64
	EventID    EventID
	Weight     float64
}

// TrackInitializer is a pending track (primary or secondary) waiting for a
// vacant slot.
type TrackInitializer struct {
	TrackID    TrackID
	ParentID   TrackID
	PrimaryID  int32
	EventID    EventID
	ParticleID ParticleID
	Energy     float64
	Position   Vec3
	Direction  Vec3
	Time       float64
	Weight     float64
}

// Valid reports whether the initializer refers to a real track.
func (t TrackInitializer) Valid() bool {
	return t.TrackID.Valid() && t.EventID.Valid() && t.Energy > 0
}

// Secondary is a particle emitted by an interaction, before it has an ID.
type Secondary struct {
	ParticleID ParticleID
	Energy     float64
	Direction  Vec3
}

// CoreStateCounters are per-step scalar counters. On device states they are
// only synchronized to the host on demand.
type CoreStateCounters struct {
	NumVacancies    int // empty track slots
	NumPrimaries    int // primaries waiting to become initializers
	NumInitializers int // pending track initializers
	NumSecondaries  int // secondaries produced in the last step
	NumActive       int // slots with a non-inactive status at step start
	NumAlive        int // slots still alive at step end
	NumGenerated    int // initializers generated this step
	NumPending      int // primaries inserted since last step

	MaxInitializers int // high-water mark of NumInitializers
}

// CoreStateCapacity sizes the per-stream buffers.
type CoreStateCapacity struct {
	Tracks       int // track slots per stream
	Initializers int // pending initializer buffer
	Secondaries  int // secondaries per track per step
	Events       int // maximum events in a run
}
