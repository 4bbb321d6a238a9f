package formula

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/domain"
)

// ID selects the pure function that computes a derived asset.
type ID int

const (
	IDNone ID = iota
	IDVUS
	IDVMAD
	IDCRSCarbon
	IDCH2O
	IDCRSWater
	IDLandUseValue
	IDPDM
	IDUCS
	IDUCSASE
	IDConvert
	idCount
)

// Role names one input slot of a formula. Graph nodes bind roles to asset IDs.
type Role string

const (
	RoleCattle    Role = "cattle"
	RoleCorn      Role = "corn"
	RoleSoy       Role = "soy"
	RoleTimber    Role = "timber"
	RoleCarbon    Role = "carbon"
	RoleUSD       Role = "usd"
	RoleEUR       Role = "eur"
	RoleVUS       Role = "vus"
	RoleVMAD      Role = "vmad"
	RoleCRSCarbon Role = "crs_carbon"
	RoleCRSWater  Role = "crs_water"
	RoleCH2O      Role = "ch2o"
	RolePDM       Role = "pdm"
	RoleUCS       Role = "ucs"
	RoleValue     Role = "value"
	RoleRate      Role = "rate"
)

// Inputs carries the resolved dependency values and weights of one evaluation, keyed by role.
type Inputs struct {
	Values  map[Role]decimal.Decimal
	Weights map[Role]decimal.Decimal
}

func (in Inputs) v(r Role) decimal.Decimal { return in.Values[r] }

func (in Inputs) weighted(rents map[Role]decimal.Decimal, roles ...Role) []Weighted {
	parts := make([]Weighted, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, Weighted{Rent: rents[r], Weight: in.Weights[r]})
	}
	return parts
}

type definition struct {
	name     string
	label    string
	roles    []Role
	weighted []Role
	eval     func(in Inputs) decimal.Decimal
}

var definitions = [idCount]definition{
	IDNone: {
		name:  "none",
		label: "cotação externa",
	},
	IDVUS: {
		name:     "vus",
		label:    "VUS = ((rentBoi×25×0.35) + (rentMilho×25×0.30) + (rentSoja×25×0.35)) × (1 − 0.048)",
		roles:    []Role{RoleCattle, RoleCorn, RoleSoy, RoleUSD},
		weighted: []Role{RoleCattle, RoleCorn, RoleSoy},
		eval: func(in Inputs) decimal.Decimal {
			return VUS(in.weighted(Rents(in), RoleCattle, RoleCorn, RoleSoy)...)
		},
	},
	IDVMAD: {
		name:  "vmad",
		label: "VMAD = rentMadeira × 5",
		roles: []Role{RoleTimber, RoleUSD},
		eval: func(in Inputs) decimal.Decimal {
			return VMAD(RentTimber(in.v(RoleTimber), in.v(RoleUSD)))
		},
	},
	IDCRSCarbon: {
		name:  "crs_carbono",
		label: "CRS carbono = rentCarbono × 25",
		roles: []Role{RoleCarbon, RoleEUR},
		eval: func(in Inputs) decimal.Decimal {
			return CRSCarbon(RentCarbon(in.v(RoleCarbon), in.v(RoleEUR)))
		},
	},
	IDCH2O: {
		name:     "ch2o_agua",
		label:    "CH2O = (rentBoi×0.35) + (rentMilho×0.30) + (rentSoja×0.35) + rentMadeira + rentCarbono",
		roles:    []Role{RoleCattle, RoleCorn, RoleSoy, RoleTimber, RoleCarbon, RoleUSD, RoleEUR},
		weighted: []Role{RoleCattle, RoleCorn, RoleSoy, RoleTimber, RoleCarbon},
		eval: func(in Inputs) decimal.Decimal {
			return CH2O(in.weighted(Rents(in), RoleCattle, RoleCorn, RoleSoy, RoleTimber, RoleCarbon)...)
		},
	},
	IDCRSWater: {
		name:  "custo_agua",
		label: "CRS água = CH2O × 0.07",
		roles: []Role{RoleCH2O},
		eval: func(in Inputs) decimal.Decimal {
			return CRSWater(in.v(RoleCH2O))
		},
	},
	IDLandUseValue: {
		name:  "valor_uso_solo",
		label: "Valor Uso Solo = VUS + VMAD + CRS carbono + CRS água",
		roles: []Role{RoleVUS, RoleVMAD, RoleCRSCarbon, RoleCRSWater},
		eval: func(in Inputs) decimal.Decimal {
			return LandUseValue(in.v(RoleVUS), in.v(RoleVMAD), in.v(RoleCRSCarbon), in.v(RoleCRSWater))
		},
	},
	IDPDM: {
		name:  "pdm",
		label: "PDM = CH2O + CRS água",
		roles: []Role{RoleCH2O, RoleCRSWater},
		eval: func(in Inputs) decimal.Decimal {
			return PDM(in.v(RoleCH2O), in.v(RoleCRSWater))
		},
	},
	IDUCS: {
		name:  "ucs",
		label: "UCS = (PDM / 900) / 2",
		roles: []Role{RolePDM},
		eval: func(in Inputs) decimal.Decimal {
			return UCS(in.v(RolePDM))
		},
	},
	IDUCSASE: {
		name:  "ucs_ase",
		label: "UCS ASE = UCS × 2",
		roles: []Role{RoleUCS},
		eval: func(in Inputs) decimal.Decimal {
			return UCSASE(in.v(RoleUCS))
		},
	},
	IDConvert: {
		name:  "conversao",
		label: "valor / cotação da moeda",
		roles: []Role{RoleValue, RoleRate},
		eval: func(in Inputs) decimal.Decimal {
			return Convert(in.v(RoleValue), in.v(RoleRate))
		},
	},
}

func (id ID) valid() bool { return id >= 0 && id < idCount }

// String returns the formula's configuration name.
func (id ID) String() string {
	if !id.valid() {
		return fmt.Sprintf("formula(%d)", int(id))
	}
	return definitions[id].name
}

// Parse resolves a configuration name into a formula ID.
func Parse(name string) (ID, error) {
	for id := IDNone; id < idCount; id++ {
		if definitions[id].name == name {
			return id, nil
		}
	}
	return IDNone, fmt.Errorf("unknown formula %q", name)
}

// Derived reports whether the formula computes a value (IDNone marks externally quoted assets).
func (id ID) Derived() bool {
	return id.valid() && definitions[id].eval != nil
}

// Roles lists the inputs a formula requires, in evaluation order.
func (id ID) Roles() []Role {
	if !id.valid() {
		return nil
	}
	return definitions[id].roles
}

// WeightedRoles lists the roles that need a weight.
func (id ID) WeightedRoles() []Role {
	if !id.valid() {
		return nil
	}
	return definitions[id].weighted
}

// Label is a human-readable rendering of the formula.
func (id ID) Label() string {
	if !id.valid() {
		return ""
	}
	return definitions[id].label
}

// Evaluate applies the formula. A missing or non-positive input yields zero:
// a composite is never computed from incomplete data.
func Evaluate(id ID, in Inputs) decimal.Decimal {
	if !id.Derived() {
		return decimal.Zero
	}
	def := definitions[id]
	if domain.AnyNonPositive(lo.Map(def.roles, func(r Role, _ int) decimal.Decimal { return in.v(r) })...) {
		return decimal.Zero
	}
	result := def.eval(in)
	if result.IsNegative() {
		return decimal.Zero
	}
	return result
}

// Rents normalizes every raw commodity price present in the inputs into rent média.
func Rents(in Inputs) map[Role]decimal.Decimal {
	rents := make(map[Role]decimal.Decimal)
	if p, ok := in.Values[RoleCattle]; ok {
		rents[RoleCattle] = RentCattle(p)
	}
	if p, ok := in.Values[RoleCorn]; ok {
		rents[RoleCorn] = RentCorn(p)
	}
	if p, ok := in.Values[RoleSoy]; ok {
		rents[RoleSoy] = RentSoy(p, in.v(RoleUSD))
	}
	if p, ok := in.Values[RoleTimber]; ok {
		rents[RoleTimber] = RentTimber(p, in.v(RoleUSD))
	}
	if p, ok := in.Values[RoleCarbon]; ok {
		rents[RoleCarbon] = RentCarbon(p, in.v(RoleEUR))
	}
	return rents
}

// MarshalText renders the formula by its configuration name.
func (id ID) MarshalText() ([]byte, error) {
	if !id.valid() {
		return nil, fmt.Errorf("invalid formula id %d", int(id))
	}
	return []byte(definitions[id].name), nil
}

// UnmarshalText parses a configuration name.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
