package properties

// closureProgram derives the property hierarchy from the told facts.
// A composition L∘R with a reflexive right (left) component is a
// super-property of L (R).
const closureProgram = `
Decl role_relation(R).
Decl role_told_sub(Sub, Super).
Decl role_told_reflexive(R).
Decl role_composition(T, L, R).
Decl role_step(Sub, Super).
Decl role_sub(Sub, Super).
Decl role_reflexive(R).
Decl role_composes(A, B, T).

role_step(X, Y) :- role_told_sub(X, Y).
role_step(L, T) :- role_composition(T, L, R), role_reflexive(R).
role_step(R, T) :- role_composition(T, L, R), role_reflexive(L).

role_sub(X, X) :- role_relation(X).
role_sub(X, Z) :- role_step(X, Y), role_sub(Y, Z).

role_reflexive(R) :- role_told_reflexive(R).
role_reflexive(S) :- role_reflexive(R), role_told_sub(R, S).
role_reflexive(T) :- role_composition(T, L, R), role_reflexive(L), role_reflexive(R).

role_composes(A, B, T) :- role_composition(T, L, R), role_sub(A, L), role_sub(B, R).
`
