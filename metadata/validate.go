package metadata

import "fmt"

// validate checks internal consistency after parsing: every
// referenced TypeID resolves, pallet indices and names are unique,
// and per-pallet call/event/error/storage/constant names are unique.
// It also populates the pallet lookup maps.
func (m *Metadata) validate() error {
	for id, t := range m.Types.types {
		if err := m.checkTypeRefs(t); err != nil {
			return fmt.Errorf("metadata: type %d: %w", id, err)
		}
	}

	indexOwner := make(map[byte]string, len(m.Pallets))
	for _, p := range m.Pallets {
		if other, dup := indexOwner[p.Index]; dup {
			return fmt.Errorf("%w: %d used by %q and %q", ErrDuplicatePallet, p.Index, other, p.Name)
		}
		indexOwner[p.Index] = p.Name
		if _, dup := m.byName[p.Name]; dup {
			return fmt.Errorf("%w: pallet %q", ErrDuplicateName, p.Name)
		}
		if err := m.validatePallet(p); err != nil {
			return fmt.Errorf("metadata: pallet %q: %w", p.Name, err)
		}
		m.byName[p.Name] = p
		m.byIndex[p.Index] = p
	}

	if _, err := m.Types.Resolve(m.Extrinsic.Type); err != nil {
		return fmt.Errorf("metadata: extrinsic: %w", err)
	}
	for _, se := range m.Extrinsic.SignedExtensions {
		if _, err := m.Types.Resolve(se.Type); err != nil {
			return fmt.Errorf("metadata: signed extension %q: %w", se.Identifier, err)
		}
		if _, err := m.Types.Resolve(se.AdditionalSigned); err != nil {
			return fmt.Errorf("metadata: signed extension %q: %w", se.Identifier, err)
		}
	}
	if _, err := m.Types.Resolve(m.RuntimeType); err != nil {
		return fmt.Errorf("metadata: runtime type: %w", err)
	}
	return nil
}

// checkTypeRefs verifies that every TypeID a descriptor mentions has
// a registry entry. Existence only: cycles stay unexpanded.
func (m *Metadata) checkTypeRefs(t *Type) error {
	check := func(id TypeID) error {
		_, err := m.Types.Resolve(id)
		return err
	}
	for _, p := range t.Params {
		if p.Type != nil {
			if err := check(*p.Type); err != nil {
				return fmt.Errorf("param %q: %w", p.Name, err)
			}
		}
	}
	switch def := t.Def.(type) {
	case DefComposite:
		return checkFieldRefs(def.Fields, check)
	case DefVariant:
		for i := range def.Variants {
			if err := checkFieldRefs(def.Variants[i].Fields, check); err != nil {
				return fmt.Errorf("variant %q: %w", def.Variants[i].Name, err)
			}
		}
	case DefSequence:
		return check(def.Elem)
	case DefArray:
		return check(def.Elem)
	case DefTuple:
		for _, id := range def.Elems {
			if err := check(id); err != nil {
				return err
			}
		}
	case DefPrimitive:
	case DefCompact:
		return check(def.Elem)
	case DefBitSequence:
		if err := check(def.Store); err != nil {
			return err
		}
		return check(def.Order)
	}
	return nil
}

func checkFieldRefs(fields []Field, check func(TypeID) error) error {
	for i := range fields {
		if err := check(fields[i].Type); err != nil {
			if fields[i].Name != "" {
				return fmt.Errorf("field %q: %w", fields[i].Name, err)
			}
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	return nil
}

func (m *Metadata) validatePallet(p *Pallet) error {
	if p.CallType != nil {
		if err := m.checkVariantType("call", *p.CallType); err != nil {
			return err
		}
	}
	if p.EventType != nil {
		if err := m.checkVariantType("event", *p.EventType); err != nil {
			return err
		}
	}
	if p.ErrorType != nil {
		if err := m.checkVariantType("error", *p.ErrorType); err != nil {
			return err
		}
	}

	if p.Storage != nil {
		names := make(map[string]struct{}, len(p.Storage.Entries))
		for _, e := range p.Storage.Entries {
			if _, dup := names[e.Name]; dup {
				return fmt.Errorf("%w: storage entry %q", ErrDuplicateName, e.Name)
			}
			names[e.Name] = struct{}{}
			if e.Key != nil {
				if len(e.Hashers) == 0 {
					return fmt.Errorf("metadata: storage map %q declares no hashers", e.Name)
				}
				if _, err := m.Types.Resolve(*e.Key); err != nil {
					return fmt.Errorf("storage %q key: %w", e.Name, err)
				}
			}
			if _, err := m.Types.Resolve(e.Value); err != nil {
				return fmt.Errorf("storage %q value: %w", e.Name, err)
			}
		}
	}

	names := make(map[string]struct{}, len(p.Constants))
	for _, c := range p.Constants {
		if _, dup := names[c.Name]; dup {
			return fmt.Errorf("%w: constant %q", ErrDuplicateName, c.Name)
		}
		names[c.Name] = struct{}{}
		if _, err := m.Types.Resolve(c.Type); err != nil {
			return fmt.Errorf("constant %q: %w", c.Name, err)
		}
	}
	return nil
}

// checkVariantType requires id to resolve to a variant definition
// with unique arm names and discriminants.
func (m *Metadata) checkVariantType(kind string, id TypeID) error {
	def, err := m.variantDef(id)
	if err != nil {
		return fmt.Errorf("%s type: %w", kind, err)
	}
	names := make(map[string]struct{}, len(def.Variants))
	indices := make(map[byte]struct{}, len(def.Variants))
	for i := range def.Variants {
		v := &def.Variants[i]
		if _, dup := names[v.Name]; dup {
			return fmt.Errorf("%w: %s %q", ErrDuplicateName, kind, v.Name)
		}
		if _, dup := indices[v.Index]; dup {
			return fmt.Errorf("%w: %s discriminant %d", ErrDuplicateName, kind, v.Index)
		}
		names[v.Name] = struct{}{}
		indices[v.Index] = struct{}{}
		if err := checkFieldRefs(v.Fields, func(ref TypeID) error {
			_, err := m.Types.Resolve(ref)
			return err
		}); err != nil {
			return fmt.Errorf("%s %q: %w", kind, v.Name, err)
		}
	}
	return nil
}
